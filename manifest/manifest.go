// Package manifest handles regvm.toml host configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/chazu/regvm/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// FileName is the name of the configuration file.
const FileName = "regvm.toml"

// Manifest represents a regvm.toml configuration.
type Manifest struct {
	VM         VMConfig          `toml:"vm"`
	Debug      DebugConfig       `toml:"debug"`
	Store      StoreConfig       `toml:"store"`
	Log        LogConfig         `toml:"log"`
	Parameters map[string]string `toml:"parameters"`

	// Dir is the directory containing the regvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures the VM instances a host creates.
type VMConfig struct {
	Name         string `toml:"name"`
	Entry        string `toml:"entry"`
	RecordVisits bool   `toml:"record-visits"`
}

// DebugConfig configures the debugger.
type DebugConfig struct {
	Enabled     bool `toml:"enabled"`
	EventBuffer int  `toml:"event-buffer"`
}

// StoreConfig configures the image store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a regvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

// Default returns the configuration used for a directory without a
// regvm.toml file.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if m.VM.Name == "" {
		m.VM.Name = filepath.Base(m.Dir)
	}
	if m.Debug.EventBuffer <= 0 {
		m.Debug.EventBuffer = 16
	}
	if m.Store.Path == "" {
		m.Store.Path = filepath.Join(".regvm", "images.db")
	}
}

// FindAndLoad walks up from startDir to find a regvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the VM options the manifest describes.
func (m *Manifest) Options() vm.Options {
	return vm.Options{
		Name:         m.VM.Name,
		RecordVisits: m.VM.RecordVisits,
		Debug:        m.Debug.Enabled,
		EventBuffer:  m.Debug.EventBuffer,
	}
}

// StorePath returns the absolute path of the image store.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// ApplyParameters assigns the [parameters] table to v's parameters as
// textual values, in name order.
func (m *Manifest) ApplyParameters(v *vm.VM) error {
	names := make([]string, 0, len(m.Parameters))
	for name := range m.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := v.SetParameterValue(name, m.Parameters[name]); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
	}
	return nil
}

// ConfigureLogging applies the [log] section to the commonlog backend.
func (m *Manifest) ConfigureLogging() {
	var path *string
	if m.Log.File != "" {
		file := m.Log.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(m.Dir, file)
		}
		path = &file
	}
	commonlog.Configure(m.Log.Verbosity, path)
}

package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/regvm/vm"
	"github.com/google/go-cmp/cmp"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[vm]
name = "rig"
entry = "Update"
record-visits = true

[debug]
enabled = true
event-buffer = 32

[store]
path = "/var/lib/regvm/images.db"

[log]
verbosity = 2
file = "regvm.log"

[parameters]
speed = "2.5"
label = '"walk"'
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.VM.Name != "rig" {
		t.Errorf("vm name = %q, want rig", m.VM.Name)
	}
	if m.VM.Entry != "Update" {
		t.Errorf("vm entry = %q, want Update", m.VM.Entry)
	}
	if !m.VM.RecordVisits {
		t.Error("record-visits not set")
	}
	if !m.Debug.Enabled || m.Debug.EventBuffer != 32 {
		t.Errorf("debug = %+v", m.Debug)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "regvm.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if diff := cmp.Diff(map[string]string{"speed": "2.5", "label": `"walk"`}, m.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if got := m.StorePath(); got != "/var/lib/regvm/images.db" {
		t.Errorf("StorePath() = %q", got)
	}

	want := vm.Options{Name: "rig", RecordVisits: true, Debug: true, EventBuffer: 32}
	if diff := cmp.Diff(want, m.Options()); diff != "" {
		t.Errorf("Options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.VM.Name != filepath.Base(dir) {
		t.Errorf("default name = %q, want %q", m.VM.Name, filepath.Base(dir))
	}
	if m.Debug.EventBuffer != 16 {
		t.Errorf("default event buffer = %d, want 16", m.Debug.EventBuffer)
	}
	if got, want := m.StorePath(), filepath.Join(m.Dir, ".regvm", "images.db"); got != want {
		t.Errorf("StorePath() = %q, want %q", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("missing file error = %v", err)
	}

	dir := t.TempDir()
	writeManifest(t, dir, "[vm\nname = ")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("bad toml error = %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[vm]\nname = \"outer\"\n")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(deep)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.VM.Name != "outer" {
		t.Fatalf("FindAndLoad = %+v, want the root manifest", m)
	}
	if m.Dir != root {
		t.Errorf("Dir = %q, want %q", m.Dir, root)
	}
}

func TestApplyParameters(t *testing.T) {
	v := vm.New(vm.Options{})
	speed := v.Work().MustAddRegister(vm.RegisterSpec{Name: "speed", TypeName: vm.TypeDouble})
	tags := v.Work().MustAddRegister(vm.RegisterSpec{Name: "tags", TypeName: vm.TypeName, Growth: vm.Dynamic})
	for _, p := range []vm.Parameter{{Name: "speed", Register: speed}, {Name: "tags", Register: tags}} {
		if err := v.AddParameter(p); err != nil {
			t.Fatal(err)
		}
	}

	m := &Manifest{Parameters: map[string]string{"speed": "2.5", "tags": "(idle,walk)"}}
	if err := m.ApplyParameters(v); err != nil {
		t.Fatalf("ApplyParameters: %v", err)
	}
	if got := v.Work().Register(speed).Data().Float64(0); got != 2.5 {
		t.Errorf("speed = %v, want 2.5", got)
	}
	if diff := cmp.Diff([]string{"idle", "walk"}, v.Work().Register(tags).Values()); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	m.Parameters = map[string]string{"missing": "1"}
	if err := m.ApplyParameters(v); err == nil || !strings.Contains(err.Error(), "parameter missing") {
		t.Errorf("unknown parameter error = %v", err)
	}
}

func TestDefault(t *testing.T) {
	dir := t.TempDir()
	m, err := Default(dir)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := FindAndLoad(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil && loaded.Dir == dir {
		t.Fatal("found a manifest in an empty directory")
	}
	if m.VM.Name != filepath.Base(dir) || m.Debug.EventBuffer != 16 {
		t.Errorf("Default = %+v", m)
	}
	if got, want := m.StorePath(), filepath.Join(dir, ".regvm", "images.db"); got != want {
		t.Errorf("StorePath() = %q, want %q", got, want)
	}
}

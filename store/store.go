// Package store keeps compiled VM images in SQLite so hosts can reload a
// program without recompiling it.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/regvm/vm"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("regvm.store")

// ErrImageNotFound indicates the requested image doesn't exist
var ErrImageNotFound = errors.New("image not found")

// ImageInfo describes a stored image.
type ImageInfo struct {
	Name    string
	Size    int
	Updated time.Time
}

// ImageStore handles SQLite storage for VM images
type ImageStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if needed) the image store at dbPath.
func Open(dbPath string) (*ImageStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &ImageStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *ImageStore) Path() string { return s.dbPath }

// Close closes the database connection
func (s *ImageStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores raw image bytes under name, replacing any previous image.
func (s *ImageStore) Put(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO images (name, data, updated) VALUES (?, ?, ?)",
		name, data, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving image %s: %w", name, err)
	}
	return nil
}

// Get returns the raw image bytes stored under name.
func (s *ImageStore) Get(name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM images WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image %s: %w", name, err)
	}
	return data, nil
}

// Delete removes an image. Deleting a missing image is not an error.
func (s *ImageStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM images WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting image %s: %w", name, err)
	}
	return nil
}

// List returns every stored image, ordered by name.
func (s *ImageStore) List() ([]ImageInfo, error) {
	rows, err := s.db.Query("SELECT name, length(data), updated FROM images ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var out []ImageInfo
	for rows.Next() {
		var (
			info    ImageInfo
			updated int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("scanning image row: %w", err)
		}
		info.Updated = time.Unix(0, updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// SaveVM writes v's image under name.
func (s *ImageStore) SaveVM(name string, v *vm.VM) error {
	var buf bytes.Buffer
	if err := v.Save(&buf); err != nil {
		return err
	}
	if err := s.Put(name, buf.Bytes()); err != nil {
		return err
	}
	log.Debugf("stored image %s (%d bytes)", name, buf.Len())
	return nil
}

// LoadVM loads the image stored under name into v, re-linking functions
// and struct types against reg.
func (s *ImageStore) LoadVM(name string, v *vm.VM, reg *vm.Registry) error {
	data, err := s.Get(name)
	if err != nil {
		return err
	}
	return v.Load(bytes.NewReader(data), reg)
}

package ttl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel errors for persisted state.
var (
	ErrNoSnapshot        = errors.New("ttl: no persisted snapshot")
	ErrUnrecognizedShape = errors.New("ttl: unrecognized persisted shape")
)

// Backend stores whole snapshots by key. Read returns ErrNoSnapshot when the
// key has never been written.
type Backend interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
}

// FileBackend keeps each snapshot as a JSON file under dir.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a FileBackend rooted at dir. The directory is
// created on first write.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir returns the backend root directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the snapshot for key via a temporary file and rename.
func (b *FileBackend) Write(key string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, filepath.Join(b.dir, key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

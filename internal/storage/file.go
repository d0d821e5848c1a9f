package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileTemplateStore keeps the template table in a single file on disk.
type FileTemplateStore struct {
	path string
}

// NewFileTemplateStore creates a store backed by path.
// The file and its directory are created on first Save.
func NewFileTemplateStore(path string) *FileTemplateStore {
	return &FileTemplateStore{path: path}
}

// Path returns the backing file path.
func (s *FileTemplateStore) Path() string {
	return s.path
}

// Load reads the table. A missing file means nothing has been stored.
func (s *FileTemplateStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	return data, nil
}

// Save writes data to a temporary file in the same directory and renames
// it over the previous table so readers never see a partial write.
func (s *FileTemplateStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create template directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".templates-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace template file: %w", err)
	}
	return nil
}

// Package storage provides the editor's workspace and the persisted template
// store. It defines the TemplateStore interface (port) for hexagonal
// architecture and implementations backed by a local file, S3, SQLite and
// memory, plus an S3 uploader for exported videos.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// TemplateStore persists the serialized template slot table.
// The table is always loaded and saved as a whole.
type TemplateStore interface {
	// Load returns the stored table, or nil with no error when nothing
	// has been stored yet.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored table with data.
	Save(ctx context.Context, data []byte) error
}

// Uploader pushes exported files to remote storage.
type Uploader interface {
	// Upload stores data under key and returns its public URL.
	// Returns ErrS3NotConfigured if no remote storage is configured.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// NoopUploader rejects every upload with ErrS3NotConfigured.
type NoopUploader struct{}

// Upload returns ErrS3NotConfigured.
func (NoopUploader) Upload(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

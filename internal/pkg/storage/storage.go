package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidPath  = errors.New("invalid file path")
)

// FileStorage archives generated documents such as payslips.
type FileStorage interface {
	// Save writes the content under path, replacing any previous version,
	// and returns the cleaned key.
	Save(ctx context.Context, path string, content io.Reader) (string, error)

	// Open retrieves a stored file
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if a file is stored under path
	Exists(ctx context.Context, path string) (bool, error)

	// URL returns the public URL of a stored key
	URL(path string) string
}

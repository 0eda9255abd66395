package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// LocalStore writes images into a directory
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage path is empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.New(err).
			Component("imagestore").
			Category(errors.CategoryStorage).
			Context("path", dir).
			Build()
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Kind() string { return "local" }

// Save writes data atomically via a temporary file and returns the file path
func (s *LocalStore) Save(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", s.storageError(err, path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", s.storageError(err, path)
	}
	if err := tmp.Close(); err != nil {
		return "", s.storageError(err, path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", s.storageError(err, path)
	}
	return path, nil
}

func (s *LocalStore) storageError(err error, path string) error {
	return errors.New(err).
		Component("imagestore").
		Category(errors.CategoryStorage).
		Context("path", path).
		Build()
}

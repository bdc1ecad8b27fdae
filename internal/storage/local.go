package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes pictures below a directory served at /assets/.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir when missing.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func confinedKey(name string) (string, error) {
	key := filepath.Base(filepath.Clean("/" + name))
	if key == "/" || key == "." {
		return "", errors.New("local storage: empty key")
	}
	return key, nil
}

// Save writes r to name below the root and returns name.
func (s *LocalStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key, err := confinedKey(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, key)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("local storage: create %s: %w", key, err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("local storage: write %s: %w", key, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("local storage: close %s: %w", key, err)
	}
	return key, nil
}

// Delete removes the file Save stored as path.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	key, err := confinedKey(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local storage: remove %s: %w", key, err)
	}
	return nil
}

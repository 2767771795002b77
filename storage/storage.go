// Package storage handles persistence of catalog, history and notification state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned by a Backend when a key has never been saved.
	ErrNotFound = errors.New("storage: object doesn't exist")
	// ErrPersistence wraps any failure to read or write durable state.
	ErrPersistence = errors.New("persistence failure")
)

// Backend stores opaque documents by key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// IsNotFound checks if an error indicates a key was never saved.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// validKey rejects keys that could escape a storage root.
func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// Local stores each key as a file in a directory.
type Local struct {
	logger *slog.Logger
	dir    string
}

// NewLocal creates the directory if needed and returns a local backend.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Local{dir: dir, logger: logger}, nil
}

// Load reads a key from the local directory.
func (l *Local) Load(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read from local storage: %w", err)
	}
	return data, nil
}

// Save writes a key atomically to the local directory.
func (l *Local) Save(_ context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	path := filepath.Join(l.dir, key)
	if err := WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write to local storage: %w", err)
	}
	l.logger.Debug("Saved to local storage", "path", path, "bytes", len(data))
	return nil
}

// WriteFileAtomic writes data to a temporary file in the destination
// directory and renames it into place, so readers see either the old or the
// new content and never a partial write.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // already failing
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // already failing
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

package tier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FSBlob is a filesystem-backed Blob used for local development and
// tests that should not require AWS credentials, satisfying Open
// Question 3 in DESIGN.md. Each StorageKey maps to one file under dir;
// since StorageKey is already a fixed-length hex string (see
// internal/storekey), it is safe to use directly as a filename.
type FSBlob struct {
	dir string
}

// NewFSBlob returns a Blob rooted at dir, creating it if necessary.
func NewFSBlob(dir string) (*FSBlob, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSBlob{dir: dir}, nil
}

func (b *FSBlob) path(storageKey string) string {
	return filepath.Join(b.dir, storageKey)
}

// Get reads the object, returning ErrNotFound if the file does not exist.
func (b *FSBlob) Get(ctx context.Context, storageKey string) ([]byte, error) {
	data, err := os.ReadFile(b.path(storageKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put writes value to the object's file, replacing any prior contents.
func (b *FSBlob) Put(ctx context.Context, storageKey string, value []byte) error {
	return os.WriteFile(b.path(storageKey), value, 0o644)
}

// Delete removes the object's file. Idempotent: a missing file is not an
// error.
func (b *FSBlob) Delete(ctx context.Context, storageKey string) error {
	err := os.Remove(b.path(storageKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Stats reports only the tier name; computing aggregate size would
// require walking the directory tree on every call.
func (b *FSBlob) Stats() Stats {
	return Stats{Name: "blob"}
}

// Close is a no-op: FSBlob holds no open file handles between calls.
func (b *FSBlob) Close() error { return nil }

// Package photo copies renamed survey photos into a blob store.
//
// Stores are create-only: Put never replaces an existing object, so a
// re-run of the same survey leaves already-published photos untouched.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is a create-only blob store keyed by photo name.
type Store interface {
	// Put writes r under key unless the key already exists. It reports
	// whether the object was written.
	Put(ctx context.Context, key string, r io.Reader) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// FSStore stores photos as files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore returns a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("photo output directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating photo directory: %w", err)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid photo key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return false, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return false, fmt.Errorf("writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return false, err
	}
	return true, nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

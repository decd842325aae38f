// Package localstore is a directory-backed blob store for running the sort
// operation without AWS. Each bucket is a sub-directory of the root and each
// key a relative path inside it.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
)

// Store implements linesort.Store on the local filesystem.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Get reads bucket/key. A missing file returns an error wrapping
// linesort.ErrObjectNotFound.
func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	path, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", linesort.ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("size", len(data)).Msg("Read local object")
	return data, nil
}

// Put writes data to bucket/key, creating parent directories and replacing
// any existing file.
func (s *Store) Put(_ context.Context, bucket, key string, data []byte) error {
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("size", len(data)).Msg("Wrote local object")
	return nil
}

// path maps bucket/key to a file under root and rejects keys that would
// escape the bucket directory.
func (s *Store) path(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	bucketDir := filepath.Join(s.root, bucket)
	path := filepath.Join(bucketDir, filepath.FromSlash(key))
	if path == bucketDir || !strings.HasPrefix(path, bucketDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path, nil
}

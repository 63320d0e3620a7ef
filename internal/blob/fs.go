// Package blob implements the content-addressable store for materialized
// dataset bytes. Blobs are keyed by the content hash of their canonical
// bytes; identical content is stored once regardless of how many versions
// reference it. Backends: local filesystem, S3, GCS, Azure.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"refinery/internal/domain"
)

// FilesystemStore stores blobs under root, sharded by hash prefix to keep
// directory fan-out reasonable (root/ab/abcdef...).
type FilesystemStore struct {
	root string
}

var _ domain.BlobStore = (*FilesystemStore)(nil)

// NewFilesystemStore creates the root directory if needed.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root %q: %w", root, err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) path(hash string) string {
	return filepath.Join(s.root, hash[:2], hash)
}

// Put writes data under its content hash. Idempotent: identical bytes
// yield the same hash and no duplicate write. The write goes through a
// temp file and rename so a partially written blob is never visible, and
// concurrent puts of the same content race harmlessly on the final rename.
func (s *FilesystemStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := domain.ContentHash(data)
	dst := s.path(hash)

	if _, err := os.Stat(dst); err == nil {
		return hash, nil
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.ErrStorageUnavailable(err, "create blob dir")
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", domain.ErrStorageUnavailable(err, "create temp blob")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", domain.ErrStorageUnavailable(err, "write blob %s", hash)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", domain.ErrStorageUnavailable(err, "close blob %s", hash)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", domain.ErrStorageUnavailable(err, "commit blob %s", hash)
	}
	return hash, nil
}

// Get returns the blob for a content hash.
func (s *FilesystemStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if len(hash) < 2 {
		return nil, domain.ErrValidation("malformed content hash %q", hash)
	}
	data, err := os.ReadFile(s.path(hash))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound("blob %s not found", hash)
	}
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "read blob %s", hash)
	}
	return data, nil
}

// Exists reports whether a blob with the given hash is stored.
func (s *FilesystemStore) Exists(ctx context.Context, hash string) (bool, error) {
	if len(hash) < 2 {
		return false, domain.ErrValidation("malformed content hash %q", hash)
	}
	_, err := os.Stat(s.path(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, domain.ErrStorageUnavailable(err, "stat blob %s", hash)
}

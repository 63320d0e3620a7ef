package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"refinery/internal/domain"
)

// GCSStore stores blobs as GCS objects keyed by "<prefix>/<hash>".
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ domain.BlobStore = (*GCSStore)(nil)

// NewGCSStore creates a GCS-backed blob store. keyFilePath points at a
// service-account key file; empty uses application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, keyFilePath string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	if keyFilePath != "" {
		opts = append(opts, option.WithCredentialsFile(keyFilePath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	if prefix == "" {
		prefix = "blobs"
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) object(hash string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + "/" + hash)
}

// Put uploads data under its content hash, skipping the write when the
// object already exists.
func (s *GCSStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := domain.ContentHash(data)

	exists, err := s.Exists(ctx, hash)
	if err != nil {
		return "", err
	}
	if exists {
		return hash, nil
	}

	w := s.object(hash).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", domain.ErrStorageUnavailable(err, "write object %s", hash)
	}
	if err := w.Close(); err != nil {
		// A concurrent put of the same content may have won the race;
		// the object content is identical either way.
		if ok, eerr := s.Exists(ctx, hash); eerr == nil && ok {
			return hash, nil
		}
		return "", domain.ErrStorageUnavailable(err, "commit object %s", hash)
	}
	return hash, nil
}

// Get downloads the blob for a content hash.
func (s *GCSStore) Get(ctx context.Context, hash string) ([]byte, error) {
	r, err := s.object(hash).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, domain.ErrNotFound("blob %s not found", hash)
	}
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "open object %s", hash)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "read object %s", hash)
	}
	return data, nil
}

// Exists checks object attributes for the blob.
func (s *GCSStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.object(hash).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, domain.ErrStorageUnavailable(err, "stat object %s", hash)
}

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"refinery/internal/domain"
)

// S3Config holds connection settings for an S3-compatible backend.
// Endpoint is optional; when set, path-style addressing is used (required
// by most S3-compatible providers).
type S3Config struct {
	KeyID    string
	Secret   string
	Region   string
	Bucket   string
	Endpoint string
	Prefix   string
}

// S3Store stores blobs as objects keyed by "<prefix>/<hash>".
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ domain.BlobStore = (*S3Store)(nil)

// NewS3Store creates an S3-backed blob store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "blobs"
	}
	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *S3Store) key(hash string) string {
	return s.prefix + "/" + hash
}

// Put uploads data under its content hash. A second caller with identical
// content overwrites the object with identical bytes, which is a no-op at
// the content level, so concurrent duplicate puts never error.
func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	hash := domain.ContentHash(data)

	exists, err := s.Exists(ctx, hash)
	if err != nil {
		return "", err
	}
	if exists {
		return hash, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", domain.ErrStorageUnavailable(err, "put object %s", hash)
	}
	return hash, nil
}

// Get downloads the blob for a content hash.
func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, domain.ErrNotFound("blob %s not found", hash)
		}
		return nil, domain.ErrStorageUnavailable(err, "get object %s", hash)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "read object %s", hash)
	}
	return data, nil
}

// Exists checks for the blob with a HEAD request.
func (s *S3Store) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, domain.ErrStorageUnavailable(err, "head object %s", hash)
}

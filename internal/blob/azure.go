package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"refinery/internal/domain"
)

// AzureStore stores blobs in an Azure Blob Storage container keyed by
// "<prefix>/<hash>". Only account-key authentication is supported.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

var _ domain.BlobStore = (*AzureStore)(nil)

// NewAzureStore creates an Azure-backed blob store from shared-key
// credentials.
func NewAzureStore(accountName, accountKey, container, prefix string) (*AzureStore, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure account name and key are required")
	}
	if container == "" {
		return nil, fmt.Errorf("azure container is required")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}

	if prefix == "" {
		prefix = "blobs"
	}
	return &AzureStore{client: client, container: container, prefix: prefix}, nil
}

func (s *AzureStore) name(hash string) string {
	return s.prefix + "/" + hash
}

// Put uploads data under its content hash, skipping the write when the
// blob already exists.
func (s *AzureStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := domain.ContentHash(data)

	exists, err := s.Exists(ctx, hash)
	if err != nil {
		return "", err
	}
	if exists {
		return hash, nil
	}

	_, err = s.client.UploadBuffer(ctx, s.container, s.name(hash), data, nil)
	if err != nil {
		return "", domain.ErrStorageUnavailable(err, "upload blob %s", hash)
	}
	return hash, nil
}

// Get downloads the blob for a content hash.
func (s *AzureStore) Get(ctx context.Context, hash string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.name(hash), nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, domain.ErrNotFound("blob %s not found", hash)
	}
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "download blob %s", hash)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrStorageUnavailable(err, "read blob %s", hash)
	}
	return data, nil
}

// Exists probes the blob by reading zero bytes of its properties.
func (s *AzureStore) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(s.name(hash)).
		GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, domain.ErrStorageUnavailable(err, "stat blob %s", hash)
}

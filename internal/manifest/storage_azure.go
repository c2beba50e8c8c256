package manifest

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureBackend stores objects as block blobs in one container
type AzureBackend struct {
	containerURL  azblob.ContainerURL
	containerName string
}

// NewAzureBackend creates a backend authenticated with a shared key
func NewAzureBackend(config AzureConfig) (*AzureBackend, error) {
	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	service := azblob.NewServiceURL(*serviceURL, pipeline)

	return &AzureBackend{
		containerURL:  service.NewContainerURL(config.ContainerName),
		containerName: config.ContainerName,
	}, nil
}

func (ab *AzureBackend) Provider() ProviderType { return ProviderAzure }

func (ab *AzureBackend) Write(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	blobURL := ab.containerURL.NewBlockBlobURL(key)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 4,
		Metadata:    azblob.Metadata(metadata),
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/json",
		},
	})
	return err
}

func (ab *AzureBackend) Read(ctx context.Context, key string) ([]byte, error) {
	blobURL := ab.containerURL.NewBlockBlobURL(key)
	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, err
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	return io.ReadAll(body)
}

func (ab *AzureBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		list, err := ab.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, err
		}
		for _, blob := range list.Segment.BlobItems {
			keys = append(keys, blob.Name)
		}
		marker = list.NextMarker
	}
	return keys, nil
}

func (ab *AzureBackend) Remove(ctx context.Context, key string) error {
	blobURL := ab.containerURL.NewBlockBlobURL(key)
	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	return err
}

func (ab *AzureBackend) Location(key string) string {
	return fmt.Sprintf("azure://%s/%s", ab.containerName, key)
}

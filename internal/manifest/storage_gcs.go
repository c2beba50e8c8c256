package manifest

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend stores objects in a Google Cloud Storage bucket
type GCSBackend struct {
	client     *storage.Client
	bucketName string
}

// NewGCSBackend creates a backend using a credentials file when one is
// configured and application default credentials otherwise.
func NewGCSBackend(ctx context.Context, config GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBackend{
		client:     client,
		bucketName: config.Bucket,
	}, nil
}

func (gb *GCSBackend) Provider() ProviderType { return ProviderGCS }

func (gb *GCSBackend) Write(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	writer := gb.client.Bucket(gb.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.Metadata = metadata

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (gb *GCSBackend) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := gb.client.Bucket(gb.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func (gb *GCSBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := gb.client.Bucket(gb.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (gb *GCSBackend) Remove(ctx context.Context, key string) error {
	return gb.client.Bucket(gb.bucketName).Object(key).Delete(ctx)
}

func (gb *GCSBackend) Location(key string) string {
	return fmt.Sprintf("gs://%s/%s", gb.bucketName, key)
}

// Close releases the underlying client
func (gb *GCSBackend) Close() error {
	return gb.client.Close()
}

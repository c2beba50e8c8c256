package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Backend stores objects in an S3 bucket
type S3Backend struct {
	client s3iface.S3API
	bucket string
}

// NewS3Backend creates a backend for config. Without static keys the
// default AWS credential chain is used.
func NewS3Backend(config S3Config) (*S3Backend, error) {
	awsConfig := &aws.Config{}
	if config.Region != "" {
		awsConfig.Region = aws.String(config.Region)
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(config.ForcePathStyle)
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3BackendWithClient(s3.New(sess), config.Bucket), nil
}

// NewS3BackendWithClient wraps an existing client
func NewS3BackendWithClient(client s3iface.S3API, bucket string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket}
}

func (sb *S3Backend) Provider() ProviderType { return ProviderS3 }

func (sb *S3Backend) Write(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := sb.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(sb.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    aws.StringMap(metadata),
	})
	return err
}

func (sb *S3Backend) Read(ctx context.Context, key string) ([]byte, error) {
	result, err := sb.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}

func (sb *S3Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := sb.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(sb.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (sb *S3Backend) Remove(ctx context.Context, key string) error {
	_, err := sb.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (sb *S3Backend) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", sb.bucket, key)
}

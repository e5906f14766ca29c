package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore wraps the S3 client for the content-addressed model/artifact
// store. Keys are derived from content hashes, so writes are idempotent:
// uploading the same bytes twice lands on the same key and is harmless.
type BlobStore struct {
	client     *s3.Client
	bucketName string
}

// NewBlobStore creates a blob store client from environment configuration.
// S3_ENDPOINT is optional and enables S3-compatible backends (MinIO, R2).
func NewBlobStore() (*BlobStore, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	region := os.Getenv("S3_REGION")
	accessKeyID := os.Getenv("S3_ACCESS_KEY_ID")
	secretAccessKey := os.Getenv("S3_SECRET_ACCESS_KEY")
	bucketName := os.Getenv("S3_BUCKET_NAME")

	if accessKeyID == "" || secretAccessKey == "" || bucketName == "" {
		return nil, fmt.Errorf("missing S3 configuration environment variables")
	}
	if region == "" {
		region = "auto"
	}

	opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
	}

	return &BlobStore{
		client:     s3.New(opts),
		bucketName: bucketName,
	}, nil
}

// ModelSourceKey is the content-addressed location of a model version's
// source bytes.
func ModelSourceKey(modelHash string) string {
	return fmt.Sprintf("models/%s/%s", modelHash[:2], modelHash)
}

// ThumbnailKey locates a rendered artifact for a model hash. name is the
// frame name, e.g. "poster.png" or "orbit/003.png".
func ThumbnailKey(modelHash, name string) string {
	return fmt.Sprintf("thumbnails/%s/%s/%s", modelHash[:2], modelHash, name)
}

// GetObject retrieves an object fully into memory.
func (b *BlobStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// GetObjectStream retrieves an object for streaming. The caller must close
// the reader.
func (b *BlobStore) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get object: %w", err)
	}

	contentType := aws.ToString(result.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return result.Body, contentType, aws.ToInt64(result.ContentLength), nil
}

// PutObject uploads an object.
func (b *BlobStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// DeleteObject deletes an object.
func (b *BlobStore) DeleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	return err
}

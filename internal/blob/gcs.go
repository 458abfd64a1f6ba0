// Package blob archives accepted image bytes behind the
// harvest.BlobStore interface.
package blob

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore writes archived images to a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcstorage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore builds a bucket-backed archive. Credentials come from
// the ambient application-default chain.
func NewGCSStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, logger: logger}, nil
}

// PutObject uploads one object and returns its gs:// URI.
func (s *GCSStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gcs object %s: %w", path, err)
	}
	uri := fmt.Sprintf("gs://%s/%s", s.bucket, path)
	s.logger.Debug("archived image", zap.String("uri", uri), zap.Int("bytes", len(data)))
	return uri, nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

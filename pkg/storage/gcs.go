package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// BucketStore writes images to a Cloud Storage bucket (the Firebase Storage
// bucket in production).
type BucketStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewBucketStore(bucket *gcs.BucketHandle, bucketName string) *BucketStore {
	return &BucketStore{bucket: bucket, bucketName: bucketName}
}

func (s *BucketStore) Upload(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	name, contentType, err := ObjectName(folder, filename)
	if err != nil {
		return "", err
	}

	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, name), nil
}

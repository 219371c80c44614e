package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// Object key layout of the rendition cache bucket.
const (
	photoObjectPrefix     = "photos/"
	thumbnailObjectPrefix = "thumbnails/"
	renditionContentType  = "image/jpeg"
)

// Signed URLs are treated as effectively non-expiring: the metadata store
// keeps them verbatim and nothing refreshes them.
var signedURLExpiry = time.Date(2400, time.March, 9, 0, 0, 0, 0, time.UTC)

// PhotoObjectPath returns the cache key of a photo's full-size rendition.
func PhotoObjectPath(photoKey string) string {
	return photoObjectPrefix + photoKey + ".jpg"
}

// ThumbnailObjectPath returns the cache key of a photo's thumbnail.
func ThumbnailObjectPath(photoKey string) string {
	return thumbnailObjectPrefix + photoKey + ".jpg"
}

// ObjectStore abstracts the rendition cache bucket.
type ObjectStore interface {
	Exists(ctx context.Context, object string) (bool, error)
	Upload(ctx context.Context, object, contentType string, data []byte) error
	SignedURL(object string) (string, error)
	Delete(ctx context.Context, object string) error
}

// GCSStorageService implements ObjectStore on a Google Cloud Storage bucket.
type GCSStorageService struct {
	bucket *storage.BucketHandle
}

// NewGCSStorageService creates a GCSStorageService for the named bucket.
func NewGCSStorageService(client *storage.Client, bucketName string) *GCSStorageService {
	return &GCSStorageService{bucket: client.Bucket(bucketName)}
}

// Exists reports whether an object is already cached.
func (s *GCSStorageService) Exists(ctx context.Context, object string) (bool, error) {
	_, err := s.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat object %s: %w", object, err)
	}
	return true, nil
}

// Upload writes data to the bucket with the given content type.
func (s *GCSStorageService) Upload(ctx context.Context, object, contentType string, data []byte) error {
	w := s.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish upload of %s: %w", object, err)
	}
	return nil
}

// SignedURL returns a long-lived read URL for a cached object.
func (s *GCSStorageService) SignedURL(object string) (string, error) {
	url, err := s.bucket.SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: signedURLExpiry,
		Scheme:  storage.SigningSchemeV2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", object, err)
	}
	return url, nil
}

// Delete removes a cached object. A missing object is not an error, so
// cleanup retries stay idempotent.
func (s *GCSStorageService) Delete(ctx context.Context, object string) error {
	err := s.bucket.Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", object, err)
	}
	return nil
}

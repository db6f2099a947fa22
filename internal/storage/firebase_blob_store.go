package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// FirebaseBlobStore writes objects to a Firebase Storage (GCS) bucket and
// hands out token-bearing download URLs, the same URLs the Firebase client
// SDKs produce.
type FirebaseBlobStore struct {
	bucket *storage.BucketHandle
	name   string
}

func NewFirebaseBlobStore(bucket *storage.BucketHandle, bucketName string) *FirebaseBlobStore {
	return &FirebaseBlobStore{bucket: bucket, name: bucketName}
}

func (s *FirebaseBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	token := uuid.New().String()

	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return firebaseDownloadURL(s.name, path, token), nil
}

func (s *FirebaseBlobStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *FirebaseBlobStore) DeletePrefix(ctx context.Context, prefix string) error {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.Delete(ctx, attrs.Name); err != nil {
			return fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
	}
}

// ListPrefixes returns the immediate sub-prefixes of prefix, each ending in "/".
func (s *FirebaseBlobStore) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			out = append(out, attrs.Prefix)
		}
	}
}

func firebaseDownloadURL(bucket, objectName, token string) string {
	return fmt.Sprintf(
		"https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket,
		url.PathEscape(objectName),
		url.QueryEscape(token),
	)
}

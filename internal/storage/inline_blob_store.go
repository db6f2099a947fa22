package storage

import (
	"context"
	"encoding/base64"
	"fmt"
)

// DefaultInlineMaxBytes keeps an encoded image well under Firestore's
// 1 MiB document limit.
const DefaultInlineMaxBytes = 700 << 10

// InlineBlobStore embeds media in the listing document as data URIs instead
// of writing to object storage. It suits small deployments and tests;
// there is nothing to delete.
type InlineBlobStore struct {
	maxBytes int
}

func NewInlineBlobStore(maxBytes int) *InlineBlobStore {
	if maxBytes <= 0 {
		maxBytes = DefaultInlineMaxBytes
	}
	return &InlineBlobStore{maxBytes: maxBytes}
}

func (s *InlineBlobStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > s.maxBytes {
		return "", fmt.Errorf("%s: %d encoded bytes exceed inline limit of %d", path, len(encoded), s.maxBytes)
	}
	return "data:" + contentType + ";base64," + encoded, nil
}

func (s *InlineBlobStore) Delete(context.Context, string) error { return nil }

func (s *InlineBlobStore) DeletePrefix(context.Context, string) error { return nil }

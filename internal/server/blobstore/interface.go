// Package blobstore holds the byte-storage side of photo persistence: the
// BlobStore contract and its S3, local filesystem and retrying adapters.
package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBlobNotFound is wrapped by Get when no blob exists under the key.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for empty or unsafe storage keys.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore is durable key-addressed byte storage. Implementations must be
// safe for concurrent use.
type BlobStore interface {
	// Put stores size bytes read from r under key with the given content type.
	// The blob is either fully visible under key afterwards or not at all.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens the blob stored under key. The caller must close the reader.
	// Missing blobs yield an error wrapping ErrBlobNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// EnsureBucket creates the backing bucket or directory if it is absent.
	// It is idempotent.
	EnsureBucket(ctx context.Context) error
}

package service

import (
	"context"
	"io"
)

// BlobStore stores post images in an object store under generated keys.
type BlobStore interface {
	// Store streams content to a freshly generated key that keeps the
	// extension of originalFilename, and returns that key.
	Store(ctx context.Context, content io.Reader, originalFilename string) (string, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Open streams a stored blob together with its content type.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)

	// URL returns the public read URL of a blob.
	URL(key string) string
}

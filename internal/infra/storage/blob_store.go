package storage

import (
	"context"
	"crypto/rand"
	"io"
	"math/big"
	"mime"
	"path/filepath"
	"strings"

	"blog/config"
	domainerrors "blog/internal/domain/errors"
	"blog/internal/domain/service"
	"blog/internal/errors"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

const (
	keyAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyLength          = 32
	maxExtensionLength = 10
	defaultContentType = "application/octet-stream"
)

var keyAlphabetSize = big.NewInt(int64(len(keyAlphabet)))

// blobStore implements service.BlobStore on a gocloud.dev bucket.
type blobStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// NewBlobStore wraps an opened bucket.
func NewBlobStore(bucket *blob.Bucket, cfg *config.Config) service.BlobStore {
	return &blobStore{
		bucket:  bucket,
		baseURL: publicBaseURL(cfg.Blob),
	}
}

// Store uploads content under a new random key that keeps the original extension.
func (s *blobStore) Store(ctx context.Context, content io.Reader, originalFilename string) (string, error) {
	key, err := GenerateKey(originalFilename)
	if err != nil {
		return "", errors.Wrap(domainerrors.ErrStorage, err.Error())
	}

	opts := &blob.WriterOptions{ContentType: contentTypeFor(key)}
	if err := s.bucket.Upload(ctx, key, content, opts); err != nil {
		return "", errors.Wrap(domainerrors.ErrStorage, "upload "+key+": "+err.Error())
	}

	return key, nil
}

// Delete removes a blob; a missing blob counts as deleted.
func (s *blobStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}

		return errors.Wrapf(err, "failed to delete blob %s", key)
	}

	return nil
}

// Exists reports whether a blob is stored under key.
func (s *blobStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat blob %s", key)
	}

	return ok, nil
}

// Open returns a reader over a stored blob.
func (s *blobStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, "", errors.Wrap(domainerrors.ErrImageNotFound, key)
		}

		return nil, "", errors.Wrapf(err, "failed to open blob %s", key)
	}

	contentType := reader.ContentType()
	if contentType == "" {
		contentType = contentTypeFor(key)
	}

	return reader, contentType, nil
}

// URL returns the public URL of key.
func (s *blobStore) URL(key string) string {
	if key == "" {
		return ""
	}

	return s.baseURL + "/" + key
}

// GenerateKey returns 32 random characters from [A-Z0-9] followed by the
// lowercased extension of originalFilename, if it has a usable one.
func GenerateKey(originalFilename string) (string, error) {
	var b strings.Builder
	b.Grow(keyLength + maxExtensionLength + 1)

	for range keyLength {
		n, err := rand.Int(rand.Reader, keyAlphabetSize)
		if err != nil {
			return "", errors.Wrap(err, "failed to read random bytes")
		}
		b.WriteByte(keyAlphabet[n.Int64()])
	}

	if ext := sanitizeExtension(originalFilename); ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}

	return b.String(), nil
}

func sanitizeExtension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filepath.Base(filename)), "."))
	if ext == "" || len(ext) > maxExtensionLength {
		return ""
	}

	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}

	return defaultContentType
}

func publicBaseURL(cfg *config.BlobConfig) string {
	if cfg == nil {
		return ""
	}
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/")
	}

	return containerURL(cfg)
}

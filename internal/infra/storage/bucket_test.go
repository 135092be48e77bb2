package storage

import (
	"context"
	"strings"
	"testing"

	"blog/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBucket_FileDriver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir() + "/images"

	bucket, err := OpenBucket(ctx, &config.BlobConfig{Driver: DriverFile, Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })

	store := NewBlobStore(bucket, &config.Config{Blob: &config.BlobConfig{BaseURL: "http://localhost/images"}})
	key, err := store.Store(ctx, strings.NewReader("data"), "x.gif")
	require.NoError(t, err)

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpenBucket_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := OpenBucket(ctx, &config.BlobConfig{Driver: "s3"})
	assert.Error(t, err)

	_, err = OpenBucket(ctx, &config.BlobConfig{Driver: DriverFile})
	assert.Error(t, err)

	_, err = OpenBucket(ctx, &config.BlobConfig{Driver: DriverAzure, Account: "acct"})
	assert.Error(t, err)
}

func TestOpenBucket_MemDriver(t *testing.T) {
	bucket, err := OpenBucket(context.Background(), &config.BlobConfig{Driver: DriverMem})
	require.NoError(t, err)
	assert.NoError(t, bucket.Close())
}

func TestContainerURL(t *testing.T) {
	assert.Equal(t, "https://acct.blob.core.windows.net/images",
		containerURL(&config.BlobConfig{Account: "acct", Container: "images"}))
	assert.Equal(t, "https://acct.blob.core.chinacloudapi.cn/images",
		containerURL(&config.BlobConfig{Account: "acct", Container: "images", Domain: "core.chinacloudapi.cn"}))
}

// Package storage keeps post images in an object store through gocloud.dev/blob.
package storage

import (
	"context"
	"log/slog"
	"strings"

	"blog/config"
	"blog/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/fx"
	"gocloud.dev/blob"
	"gocloud.dev/blob/azureblob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
)

// Supported blob drivers.
const (
	DriverAzure = "azure"
	DriverFile  = "file"
	DriverMem   = "mem"
)

// BucketParams defines the required parameters
type BucketParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// NewBucket opens the configured bucket and closes it when the application stops.
func NewBucket(params BucketParams) (*blob.Bucket, error) {
	bucket, err := OpenBucket(context.Background(), params.Config.Blob)
	if err != nil {
		return nil, err
	}

	params.Logger.Info("Blob bucket opened",
		slog.String("driver", params.Config.Blob.Driver),
		slog.String("container", params.Config.Blob.Container))

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return bucket.Close()
		},
	})

	return bucket, nil
}

// OpenBucket opens a bucket for the driver named in cfg.
func OpenBucket(ctx context.Context, cfg *config.BlobConfig) (*blob.Bucket, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverAzure:
		return openAzureBucket(ctx, cfg)
	case DriverFile:
		if cfg.Dir == "" {
			return nil, errors.New("blob.dir is required for the file driver")
		}
		bucket, err := fileblob.OpenBucket(cfg.Dir, &fileblob.Options{CreateDir: true})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open file bucket at %s", cfg.Dir)
		}

		return bucket, nil
	case DriverMem, "":
		return memblob.OpenBucket(nil), nil
	default:
		return nil, errors.Errorf("unknown blob driver: %s", cfg.Driver)
	}
}

func openAzureBucket(ctx context.Context, cfg *config.BlobConfig) (*blob.Bucket, error) {
	if cfg.Account == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("blob.account, blob.accountKey and blob.container are required for the azure driver")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.AccountKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Azure shared key credential")
	}

	client, err := container.NewClientWithSharedKeyCredential(containerURL(cfg), cred, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Azure container client")
	}

	bucket, err := azureblob.OpenBucket(ctx, client, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Azure bucket")
	}

	return bucket, nil
}

// containerURL is https://{account}.blob.{domain}/{container}.
func containerURL(cfg *config.BlobConfig) string {
	domain := cfg.Domain
	if domain == "" {
		domain = "core.windows.net"
	}

	return "https://" + cfg.Account + ".blob." + domain + "/" + cfg.Container
}

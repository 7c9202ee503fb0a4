package blob

import (
	"context"
	"fmt"

	"inventorycore/internal/infra/blob/fs"
	"inventorycore/internal/infra/blob/memory"
	"inventorycore/internal/infra/blob/s3"
	"inventorycore/internal/settings"
)

// Open constructs the store named by cfg.Driver. An empty driver selects
// the filesystem.
func Open(ctx context.Context, cfg settings.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

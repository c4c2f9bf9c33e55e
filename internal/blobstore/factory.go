package blobstore

import (
	"context"
	"fmt"

	"pinvault/internal/config"
	"pinvault/internal/pv"
)

// NewBlobStoreFromConfig creates a BlobStore implementation based on the blob config type.
// The filesystem store lives under vaultRoot next to the index and databases.
func NewBlobStoreFromConfig(ctx context.Context, cfg config.BlobStoreConfig, vaultRoot string) (pv.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryBlobStore()
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 blob store requires s3_bucket to be set")
		}
		return NewS3BlobStore(ctx, cfg)
	case "filesystem":
		if vaultRoot == "" {
			return nil, fmt.Errorf("filesystem blob store requires vault_root to be set")
		}
		return NewFileSystemBlobStore(vaultRoot)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}

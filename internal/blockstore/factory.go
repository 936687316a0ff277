package blockstore

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"bt-go/internal/config"
)

// NewFromConfig builds the BlockStore backend selected by cfg's Type
// field, matching the teacher's *FromConfig factory pattern used
// throughout its vault/database/staging packages.
func NewFromConfig(cfg config.BlockStoreConfig) (BlockStore, error) {
	switch cfg.Type {
	case "filesystem", "":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem block store requires fs_root to be set")
		}
		return NewFilesystemBlockStore(cfg.FSRoot)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 block store requires s3_bucket to be set")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return NewS3BlockStore(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown block store type: %s", cfg.Type)
	}
}

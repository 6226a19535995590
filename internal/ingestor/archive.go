package ingestor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldsync/fieldsync/internal/config"
)

// Archiver uploads a local output directory tree to S3, an optional
// post-session step (SPEC_FULL.md Supplemented Features,
// gated by ingestor.archive.enabled; not present in the distilled
// spec at all).
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiver builds an Archiver from the ingestor's archive config. It
// returns (nil, nil) if archiving is disabled, so callers can treat a
// nil Archiver as a no-op.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ingestor: load aws config: %w", err)
	}
	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// UploadDir walks localDir and uploads every regular file under the
// archive prefix, keyed by its relative path.
func (a *Archiver) UploadDir(ctx context.Context, localDir string) error {
	if a == nil {
		return nil
	}
	return filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("ingestor: open %s for archive: %w", path, err)
		}
		defer f.Close()

		key := filepath.ToSlash(filepath.Join(a.prefix, rel))
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("ingestor: upload %s: %w", key, err)
		}
		return nil
	})
}

// Package storage uploads evaluation reports to MinIO (or any S3-compatible store).
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"codehelp-go/internal/config"
	"codehelp-go/pkg/log"
)

// ReportUploader stores report files in a single bucket.
type ReportUploader struct {
	client *minio.Client
	bucket string
}

// NewReportUploader connects to MinIO and makes sure the bucket exists.
func NewReportUploader(ctx context.Context, cfg config.MinIOConfig) (*ReportUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		log.Infof("[Storage] bucket '%s' does not exist, creating", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}
	return &ReportUploader{client: client, bucket: cfg.BucketName}, nil
}

// Upload puts the local file at path under objectName and returns a presigned
// download URL valid for expiry.
func (u *ReportUploader) Upload(ctx context.Context, path, objectName string, expiry time.Duration) (string, error) {
	info, err := u.client.FPutObject(ctx, u.bucket, objectName, path, minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	log.Infof("[Storage] uploaded %s (%d bytes) to %s/%s", path, info.Size, u.bucket, objectName)

	presignedURL, err := u.client.PresignedGetObject(ctx, u.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectName, err)
	}
	return presignedURL.String(), nil
}

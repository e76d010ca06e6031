package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gorm.io/gorm"
)

// ErrBlobNotFound is returned by every BlobStore when no content exists
// under the requested key.
var ErrBlobNotFound = errors.New("blob not found")

// MinIOStore keeps blobs in an object-store bucket. Writes here are not part
// of the database transaction; callers compensate by removing the object
// when the surrounding transaction fails.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, _ *gorm.DB, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		logger.Error("minio_put_failed", err, map[string]interface{}{
			"key":    key,
			"size":   len(data),
			"bucket": s.bucket,
		})
	}
	return err
}

func (s *MinIOStore) Get(ctx context.Context, _ *gorm.DB, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("minio_get_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var respErr minio.ErrorResponse
		if errors.As(err, &respErr) && respErr.Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		logger.Error("minio_read_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
		return nil, err
	}
	return data, nil
}

func (s *MinIOStore) Delete(ctx context.Context, _ *gorm.DB, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"key":    key,
			"bucket": s.bucket,
		})
	}
	return err
}

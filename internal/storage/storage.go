package storage

import (
	"context"

	"gorm.io/gorm"
)

// BlobStore is the size-addressable medium holding raw file bytes. The tree
// only ever stores, reads and removes whole blobs by key; sizes live on the
// file metadata row.
//
// Implementations receive the caller's transaction: the database store joins
// it so content commits atomically with metadata, the MinIO store ignores it.
type BlobStore interface {
	Put(ctx context.Context, tx *gorm.DB, key string, data []byte) error
	Get(ctx context.Context, tx *gorm.DB, key string) ([]byte, error)
	Delete(ctx context.Context, tx *gorm.DB, key string) error
}

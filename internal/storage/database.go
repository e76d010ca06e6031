package storage

import (
	"context"
	"errors"

	"github.com/filedepot/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore keeps blobs in the file_blobs table. It is the default
// backend: content and metadata commit in one transaction, which is also
// what the handler tests run against.
type DatabaseStore struct {
	DB *gorm.DB
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{DB: db}
}

func (s *DatabaseStore) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.DB
}

func (s *DatabaseStore) Put(ctx context.Context, tx *gorm.DB, key string, data []byte) error {
	blob := models.FileBlob{Key: key, Data: data}
	return s.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data"}),
		}).
		Create(&blob).Error
}

func (s *DatabaseStore) Get(ctx context.Context, tx *gorm.DB, key string) ([]byte, error) {
	var blob models.FileBlob
	err := s.conn(tx).WithContext(ctx).First(&blob, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return blob.Data, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, tx *gorm.DB, key string) error {
	return s.conn(tx).WithContext(ctx).Delete(&models.FileBlob{}, "key = ?", key).Error
}

package services

import (
	"context"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
)

// QuotaService authorizes size-changing writes against a fixed per-file cap
// and a fixed per-user ceiling. Callers must invoke it inside the same
// transaction that commits the write, so two concurrent uploads cannot both
// see room under the ceiling.
type QuotaService struct {
	DB           *gorm.DB
	MaxFileBytes int64
	MaxUserBytes int64
}

func NewQuotaService(db *gorm.DB, cfg config.QuotaConfig) *QuotaService {
	return &QuotaService{DB: db, MaxFileBytes: cfg.MaxFileBytes, MaxUserBytes: cfg.MaxUserBytes}
}

func (q *QuotaService) WithTx(tx *gorm.DB) *QuotaService {
	return &QuotaService{DB: tx, MaxFileBytes: q.MaxFileBytes, MaxUserBytes: q.MaxUserBytes}
}

// AuthorizeWrite admits proposedBytes for ownerID or answers quota_exceeded.
// excludeFileID names a file being overwritten so its current size does not
// count against its own replacement. Landing exactly on the ceiling is
// allowed; only strictly exceeding it fails.
func (q *QuotaService) AuthorizeWrite(ctx context.Context, ownerID int64, proposedBytes int64, excludeFileID *int64) error {
	if proposedBytes > q.MaxFileBytes {
		logger.Warn("quota_file_cap_exceeded", map[string]interface{}{
			"owner_id":       ownerID,
			"proposed_bytes": proposedBytes,
			"max_file_bytes": q.MaxFileBytes,
		})
		return apperr.ErrQuotaExceeded
	}

	query := q.DB.WithContext(ctx).Model(&models.File{}).Where("owner_id = ?", ownerID)
	if excludeFileID != nil {
		query = query.Where("id <> ?", *excludeFileID)
	}

	var used int64
	if err := query.Select("COALESCE(SUM(size), 0)").Scan(&used).Error; err != nil {
		return err
	}

	if used+proposedBytes > q.MaxUserBytes {
		logger.Warn("quota_user_ceiling_exceeded", map[string]interface{}{
			"owner_id":       ownerID,
			"used_bytes":     used,
			"proposed_bytes": proposedBytes,
			"max_user_bytes": q.MaxUserBytes,
		})
		return apperr.ErrQuotaExceeded
	}
	return nil
}

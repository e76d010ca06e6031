package services

import (
	"context"
	"errors"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
)

// Share target kinds accepted by the API.
const (
	ShareTargetFile      = "file"
	ShareTargetDirectory = "directory"
)

// ShareService creates and revokes grants between two users over exactly
// one file or directory. Only an entity's owner may issue a share over it,
// and only the issuer may revoke one.
type ShareService struct {
	DB     *gorm.DB
	Access *AccessService
}

func NewShareService(db *gorm.DB, access *AccessService) *ShareService {
	return &ShareService{DB: db, Access: access}
}

// Get returns a share for its issuer or its subject.
func (s *ShareService) Get(ctx context.Context, actorID, shareID int64) (*models.Share, error) {
	share, err := s.loadShare(ctx, s.DB, shareID)
	if err != nil {
		return nil, err
	}
	if err := s.Access.Require(ctx, actorID, share, false); err != nil {
		return nil, err
	}
	return share, nil
}

// Create issues a grant from issuerID to subjectID over the target named by
// targetType ("file" or "directory") and targetID.
func (s *ShareService) Create(ctx context.Context, issuerID, subjectID int64, targetType string, targetID int64, canWrite bool) (*models.Share, error) {
	var created *models.Share
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subject models.StorageUser
		if err := tx.First(&subject, "id = ?", subjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}

		share := models.Share{IssuerID: issuerID, SubjectID: subjectID, CanWrite: canWrite}

		var targetOwnerID int64
		switch targetType {
		case ShareTargetFile:
			file, err := loadFile(tx, targetID)
			if err != nil {
				return err
			}
			if err := s.Access.WithTx(tx).Require(ctx, issuerID, file, true); err != nil {
				return err
			}
			targetOwnerID = file.OwnerID
			share.TargetFileID = &file.ID
		case ShareTargetDirectory:
			dir, err := loadDirectory(tx, targetID)
			if err != nil {
				return err
			}
			if err := s.Access.WithTx(tx).Require(ctx, issuerID, dir, true); err != nil {
				return err
			}
			targetOwnerID = dir.OwnerID
			share.TargetDirectoryID = &dir.ID
		default:
			return apperr.BadRequest("Malformed value for query parameter \"targetType\"")
		}

		// Inherited write grants are not enough to re-share: only the owner
		// hands out access to their tree.
		if targetOwnerID != issuerID {
			return apperr.ErrPermissionDenied
		}
		if issuerID == subjectID {
			return apperr.ErrInvalidSubject
		}

		if err := insertWithRandomID(tx, func(tx *gorm.DB, id int64) error {
			share.ID = id
			return tx.Create(&share).Error
		}, nil); err != nil {
			return err
		}
		created = &share
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(formatUserID(issuerID), "share_created", map[string]interface{}{
		"share_id":   created.ID,
		"subject_id": subjectID,
		"can_write":  canWrite,
	})
	return created, nil
}

// Delete revokes a share. Only the issuer holds write access on a share, so
// a subject attempting revocation gets permission_denied.
func (s *ShareService) Delete(ctx context.Context, actorID, shareID int64) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		share, err := s.loadShare(ctx, tx, shareID)
		if err != nil {
			return err
		}
		if err := s.Access.WithTx(tx).Require(ctx, actorID, share, true); err != nil {
			return err
		}
		return tx.Delete(&models.Share{}, "id = ?", share.ID).Error
	})
	if err != nil {
		return err
	}

	logger.InfoWithUser(formatUserID(actorID), "share_deleted", map[string]interface{}{
		"share_id": shareID,
	})
	return nil
}

func (s *ShareService) loadShare(ctx context.Context, tx *gorm.DB, id int64) (*models.Share, error) {
	var share models.Share
	if err := tx.WithContext(ctx).First(&share, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &share, nil
}

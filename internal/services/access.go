package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
)

// AccessService decides read/write eligibility for every entity kind:
// ownership first, then direct shares, then grants inherited from ancestor
// directories. The parent chain is walked iteratively by id lookup, never
// through loaded object graphs.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// WithTx returns a view of the service bound to tx so access decisions read
// the same snapshot as the mutation they guard.
func (a *AccessService) WithTx(tx *gorm.DB) *AccessService {
	return &AccessService{DB: tx}
}

// CanAccess answers whether userID may read (write=false) or write
// (write=true) the target. The target set is closed: user, directory, file
// or share.
func (a *AccessService) CanAccess(ctx context.Context, userID int64, target interface{}, write bool) (bool, error) {
	switch entity := target.(type) {
	case *models.StorageUser:
		// A profile is readable only by its own user and writable by no one
		// through this path.
		return !write && entity.ID == userID, nil
	case *models.Directory:
		return a.canAccessDirectory(ctx, userID, entity, write)
	case *models.File:
		return a.canAccessFile(ctx, userID, entity, write)
	case *models.Share:
		if entity.IssuerID == userID {
			return true, nil
		}
		return !write && entity.SubjectID == userID, nil
	default:
		return false, fmt.Errorf("access check over unknown entity type %T", target)
	}
}

// Require maps an access decision onto the error contract: an entity the
// caller may not read answers not_found so its existence stays hidden; a
// readable entity the caller may not write answers permission_denied.
func (a *AccessService) Require(ctx context.Context, userID int64, target interface{}, write bool) error {
	canRead, err := a.CanAccess(ctx, userID, target, false)
	if err != nil {
		return err
	}
	if !canRead {
		logger.Warn("access_denied_read", map[string]interface{}{
			"user_id": userID,
			"target":  fmt.Sprintf("%T", target),
		})
		return apperr.ErrNotFound
	}

	if !write {
		return nil
	}

	canWrite, err := a.CanAccess(ctx, userID, target, true)
	if err != nil {
		return err
	}
	if !canWrite {
		logger.Warn("access_denied_write", map[string]interface{}{
			"user_id": userID,
			"target":  fmt.Sprintf("%T", target),
		})
		return apperr.ErrPermissionDenied
	}
	return nil
}

func (a *AccessService) canAccessDirectory(ctx context.Context, userID int64, dir *models.Directory, write bool) (bool, error) {
	current := *dir
	for {
		if current.OwnerID == userID {
			return true, nil
		}

		granted, err := a.shareGrants(ctx, "target_directory_id", current.ID, userID, write)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}

		if current.ParentID == nil {
			return false, nil
		}

		var parent models.Directory
		if err := a.DB.WithContext(ctx).First(&parent, "id = ?", *current.ParentID).Error; err != nil {
			return false, err
		}
		current = parent
	}
}

func (a *AccessService) canAccessFile(ctx context.Context, userID int64, file *models.File, write bool) (bool, error) {
	if file.OwnerID == userID {
		return true, nil
	}

	granted, err := a.shareGrants(ctx, "target_file_id", file.ID, userID, write)
	if err != nil {
		return false, err
	}
	if granted {
		return true, nil
	}

	// Without a direct grant the decision is entirely inherited from the
	// containing directory chain.
	var parent models.Directory
	if err := a.DB.WithContext(ctx).First(&parent, "id = ?", file.ParentDirectoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return a.canAccessDirectory(ctx, userID, &parent, write)
}

// shareGrants checks the direct shares on one target: a write-capable share
// grants everything, any share grants read.
func (a *AccessService) shareGrants(ctx context.Context, targetColumn string, targetID, userID int64, write bool) (bool, error) {
	var shares []models.Share
	if err := a.DB.WithContext(ctx).
		Where(targetColumn+" = ? AND subject_id = ?", targetID, userID).
		Find(&shares).Error; err != nil {
		return false, err
	}

	for _, share := range shares {
		if share.CanWrite {
			return true, nil
		}
		if !write {
			return true, nil
		}
	}
	return false, nil
}

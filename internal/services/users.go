package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/storage"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
)

// UserService owns the storage-side user lifecycle: lazy provisioning on
// first valid token, profile reads, and the cascading deletion triggered by
// the external user-update signal.
type UserService struct {
	DB     *gorm.DB
	Access *AccessService
	Blobs  storage.BlobStore
}

func NewUserService(db *gorm.DB, access *AccessService, blobs storage.BlobStore) *UserService {
	return &UserService{DB: db, Access: access, Blobs: blobs}
}

// Provision returns the user record for userID, creating it together with
// its root directory on first sight. Concurrent first requests are settled
// by the primary key: the loser of the race falls back to reading the
// winner's record.
func (u *UserService) Provision(ctx context.Context, userID int64, displayName string) (*models.StorageUser, error) {
	var user models.StorageUser
	err := u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&user, "id = ?", userID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.StorageUser{ID: userID, DisplayName: displayName}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		root := models.Directory{Name: "root", OwnerID: userID}
		if err := insertWithRandomID(tx, func(tx *gorm.DB, id int64) error {
			root.ID = id
			return tx.Create(&root).Error
		}, nil); err != nil {
			return err
		}

		logger.Info("user_provisioned", map[string]interface{}{
			"user_id":      userID,
			"display_name": displayName,
			"root_id":      root.ID,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.StorageUser
			if readErr := u.DB.WithContext(ctx).First(&existing, "id = ?", userID).Error; readErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &user, nil
}

// Info returns a user profile with its contact list. Profiles are visible
// only to their own user; anyone else gets not_found.
func (u *UserService) Info(ctx context.Context, actorID, userID int64) (*models.StorageUser, []models.StorageUser, error) {
	var user models.StorageUser
	if err := u.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	if err := u.Access.Require(ctx, actorID, &user, false); err != nil {
		return nil, nil, err
	}

	contacts, err := u.contactsOf(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return &user, contacts, nil
}

// Delete permanently removes a user and everything transitively owned.
// Repeated delivery of the same id is a no-op.
func (u *UserService) Delete(ctx context.Context, userID int64) error {
	deleted := false
	var storageKeys []string
	err := u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.StorageUser
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Model(&models.File{}).Where("owner_id = ?", userID).Pluck("storage_key", &storageKeys).Error; err != nil {
			return err
		}

		// Shares over this user's entities always have the user as issuer,
		// so issuer/subject covers every share the user is involved in.
		if err := tx.Where("issuer_id = ? OR subject_id = ?", userID, userID).Delete(&models.Share{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? OR contact_id = ?", userID, userID).Delete(&models.ContactEdge{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", userID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", userID).Delete(&models.Directory{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.StorageUser{}, "id = ?", userID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		// Content goes after commit; a failed purge leaves an unreachable
		// object rather than a half-deleted account.
		for _, key := range storageKeys {
			if err := u.Blobs.Delete(ctx, nil, key); err != nil {
				logger.Error("blob_purge_failed", err, map[string]interface{}{"storage_key": key})
			}
		}
		logger.Info("user_deleted", map[string]interface{}{"user_id": userID})
	}
	return nil
}

func (u *UserService) contactsOf(ctx context.Context, userID int64) ([]models.StorageUser, error) {
	var edges []models.ContactEdge
	if err := u.DB.WithContext(ctx).
		Where("user_id = ? OR contact_id = ?", userID, userID).
		Find(&edges).Error; err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return []models.StorageUser{}, nil
	}

	ids := make([]int64, 0, len(edges))
	for _, edge := range edges {
		if edge.UserID == userID {
			ids = append(ids, edge.ContactID)
		} else {
			ids = append(ids, edge.UserID)
		}
	}

	var contacts []models.StorageUser
	if err := u.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

package services

import (
	"context"
	"errors"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactService maintains the symmetric acquaintance list. Adding from
// either side is the same edge, and both add and remove are idempotent.
type ContactService struct {
	DB *gorm.DB
}

func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{DB: db}
}

// Get returns the public profile of any existing user.
func (c *ContactService) Get(ctx context.Context, contactID int64) (*models.StorageUser, error) {
	return c.loadUser(ctx, contactID)
}

// Add records the acquaintance between userID and contactID.
func (c *ContactService) Add(ctx context.Context, userID, contactID int64) (*models.StorageUser, error) {
	if userID == contactID {
		return nil, apperr.ErrInvalidContact
	}

	contact, err := c.loadUser(ctx, contactID)
	if err != nil {
		return nil, err
	}

	edge := models.ContactEdge{UserID: userID, ContactID: contactID}.Normalize()
	if err := c.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edge).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(formatUserID(userID), "contact_added", map[string]interface{}{
		"contact_id": contactID,
	})
	return contact, nil
}

// Remove drops the acquaintance if present.
func (c *ContactService) Remove(ctx context.Context, userID, contactID int64) error {
	if _, err := c.loadUser(ctx, contactID); err != nil {
		return err
	}

	edge := models.ContactEdge{UserID: userID, ContactID: contactID}.Normalize()
	if err := c.DB.WithContext(ctx).
		Where("user_id = ? AND contact_id = ?", edge.UserID, edge.ContactID).
		Delete(&models.ContactEdge{}).Error; err != nil {
		return err
	}

	logger.InfoWithUser(formatUserID(userID), "contact_removed", map[string]interface{}{
		"contact_id": contactID,
	})
	return nil
}

func (c *ContactService) loadUser(ctx context.Context, id int64) (*models.StorageUser, error) {
	var user models.StorageUser
	if err := c.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

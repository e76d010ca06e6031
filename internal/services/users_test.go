package services

import (
	"context"
	"testing"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/storage"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUsers(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewUserService(db, NewAccessService(db), storage.NewDatabaseStore(db)), db
}

func TestProvisionCreatesUserAndRoot(t *testing.T) {
	users, db := newUsers(t)

	user, err := users.Provision(context.Background(), 7, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "carol", user.DisplayName)

	var root models.Directory
	require.NoError(t, db.First(&root, "owner_id = ? AND parent_id IS NULL", 7).Error)
	assert.Equal(t, "root", root.Name)
	assert.True(t, root.ID >= 1 && root.ID <= maxEntityID)
}

func TestProvisionExistingUserIsUntouched(t *testing.T) {
	users, db := newUsers(t)

	_, err := users.Provision(context.Background(), 7, "carol")
	require.NoError(t, err)

	// A later token with a changed display name does not rewrite the row.
	again, err := users.Provision(context.Background(), 7, "carol-renamed")
	require.NoError(t, err)
	assert.Equal(t, "carol", again.DisplayName)

	var rootCount int64
	db.Model(&models.Directory{}).Where("owner_id = ?", 7).Count(&rootCount)
	assert.Equal(t, int64(1), rootCount)
}

func TestInfoDeniedForOtherUsers(t *testing.T) {
	users, _ := newUsers(t)

	_, err := users.Provision(context.Background(), 1, "alice")
	require.NoError(t, err)
	_, err = users.Provision(context.Background(), 2, "bob")
	require.NoError(t, err)

	_, _, err = users.Info(context.Background(), 2, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeletePurgesEverything(t *testing.T) {
	users, db := newUsers(t)
	access := NewAccessService(db)
	tree := NewTreeService(db, access, NewQuotaService(db, testQuotaConfig()), storage.NewDatabaseStore(db))
	contacts := NewContactService(db)

	_, err := users.Provision(context.Background(), 1, "alice")
	require.NoError(t, err)
	_, err = users.Provision(context.Background(), 2, "bob")
	require.NoError(t, err)

	var root models.Directory
	require.NoError(t, db.First(&root, "owner_id = ? AND parent_id IS NULL", 1).Error)

	file, err := tree.CreateFile(context.Background(), 1, "a.txt", root.ID, []byte("data"))
	require.NoError(t, err)
	_, err = contacts.Add(context.Background(), 1, 2)
	require.NoError(t, err)
	seedShare(t, db, 300, 1, 2, int64Ptr(file.ID), nil, false)

	require.NoError(t, users.Delete(context.Background(), 1))

	type countCase struct {
		model interface{}
		query string
		args  []interface{}
	}
	for _, tc := range []countCase{
		{&models.StorageUser{}, "id = ?", []interface{}{int64(1)}},
		{&models.Directory{}, "owner_id = ?", []interface{}{int64(1)}},
		{&models.File{}, "owner_id = ?", []interface{}{int64(1)}},
		{&models.Share{}, "issuer_id = ? OR subject_id = ?", []interface{}{int64(1), int64(1)}},
		{&models.ContactEdge{}, "user_id = ? OR contact_id = ?", []interface{}{int64(1), int64(1)}},
		{&models.FileBlob{}, "1 = 1", nil},
	} {
		var count int64
		require.NoError(t, db.Model(tc.model).Where(tc.query, tc.args...).Count(&count).Error)
		assert.Zero(t, count, "leftover rows for %T", tc.model)
	}

	// The other account is untouched.
	var bob models.StorageUser
	require.NoError(t, db.First(&bob, "id = ?", 2).Error)
}

func TestDeleteUnknownUserIsNoop(t *testing.T) {
	users, _ := newUsers(t)
	require.NoError(t, users.Delete(context.Background(), 999))
}

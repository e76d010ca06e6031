package services

import (
	"sync"
	"testing"

	"github.com/filedepot/backend/internal/config"
	"github.com/filedepot/backend/internal/database"
	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testLoggerOnce sync.Once

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testLoggerOnce.Do(logger.Init)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.Models()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id int64, name string) *models.StorageUser {
	t.Helper()
	user := &models.StorageUser{ID: id, DisplayName: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedRoot(t *testing.T, db *gorm.DB, id, ownerID int64) *models.Directory {
	t.Helper()
	dir := &models.Directory{ID: id, Name: "root", OwnerID: ownerID}
	require.NoError(t, db.Create(dir).Error)
	return dir
}

func seedDirectory(t *testing.T, db *gorm.DB, id, ownerID int64, name string, parentID int64) *models.Directory {
	t.Helper()
	dir := &models.Directory{ID: id, Name: name, OwnerID: ownerID, ParentID: &parentID}
	require.NoError(t, db.Create(dir).Error)
	return dir
}

func seedFile(t *testing.T, db *gorm.DB, id, ownerID int64, name string, parentID, size int64) *models.File {
	t.Helper()
	file := &models.File{
		ID:                id,
		Name:              name,
		OwnerID:           ownerID,
		ParentDirectoryID: parentID,
		Size:              size,
		StorageKey:        name,
	}
	require.NoError(t, db.Create(file).Error)
	return file
}

func seedShare(t *testing.T, db *gorm.DB, id, issuerID, subjectID int64, fileID, dirID *int64, canWrite bool) *models.Share {
	t.Helper()
	share := &models.Share{
		ID:                id,
		IssuerID:          issuerID,
		SubjectID:         subjectID,
		TargetFileID:      fileID,
		TargetDirectoryID: dirID,
		CanWrite:          canWrite,
	}
	require.NoError(t, db.Create(share).Error)
	return share
}

func int64Ptr(v int64) *int64 { return &v }

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{MaxFileBytes: 1 << 20, MaxUserBytes: 1 << 22}
}

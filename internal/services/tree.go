package services

import (
	"context"
	"errors"

	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/storage"
	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TreeService owns the structural invariants of the directory graph:
// acyclicity, unique sibling names across the merged file+directory
// namespace, fixed ownership, and the undeletable root. Every mutation runs
// as one transaction so a validation and the write it guards cannot be
// interleaved with a conflicting writer.
type TreeService struct {
	DB     *gorm.DB
	Access *AccessService
	Quota  *QuotaService
	Blobs  storage.BlobStore
}

func NewTreeService(db *gorm.DB, access *AccessService, quota *QuotaService, blobs storage.BlobStore) *TreeService {
	return &TreeService{DB: db, Access: access, Quota: quota, Blobs: blobs}
}

// DirectoryListing is a directory together with its immediate children.
type DirectoryListing struct {
	Directory      *models.Directory
	Subdirectories []models.Directory
	Files          []models.File
}

// GetDirectory loads a directory with children for a caller holding read
// access.
func (t *TreeService) GetDirectory(ctx context.Context, actorID, directoryID int64) (*DirectoryListing, error) {
	dir, err := loadDirectory(t.DB.WithContext(ctx), directoryID)
	if err != nil {
		return nil, err
	}
	if err := t.Access.Require(ctx, actorID, dir, false); err != nil {
		return nil, err
	}

	var subdirs []models.Directory
	if err := t.DB.WithContext(ctx).Where("parent_id = ?", dir.ID).Order("name ASC").Find(&subdirs).Error; err != nil {
		return nil, err
	}
	var files []models.File
	if err := t.DB.WithContext(ctx).Where("parent_directory_id = ?", dir.ID).Order("name ASC").Find(&files).Error; err != nil {
		return nil, err
	}

	return &DirectoryListing{Directory: dir, Subdirectories: subdirs, Files: files}, nil
}

// GetFileContent returns the file metadata and its raw bytes for a caller
// holding read access.
func (t *TreeService) GetFileContent(ctx context.Context, actorID, fileID int64) (*models.File, []byte, error) {
	file, err := loadFile(t.DB.WithContext(ctx), fileID)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Access.Require(ctx, actorID, file, false); err != nil {
		return nil, nil, err
	}

	data, err := t.Blobs.Get(ctx, nil, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	return file, data, nil
}

// CreateDirectory creates a directory under parentID. The new directory
// belongs to the parent's owner regardless of who creates it.
func (t *TreeService) CreateDirectory(ctx context.Context, actorID int64, name string, parentID int64) (*models.Directory, error) {
	var created *models.Directory
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := loadDirectory(tx, parentID)
		if err != nil {
			return err
		}
		if err := t.Access.WithTx(tx).Require(ctx, actorID, parent, true); err != nil {
			return err
		}
		if err := verifySiblingNameFree(tx, parent.ID, name, nil, nil); err != nil {
			return err
		}

		dir := models.Directory{Name: name, OwnerID: parent.OwnerID, ParentID: &parent.ID}
		if err := insertWithRandomID(tx, func(tx *gorm.DB, id int64) error {
			dir.ID = id
			return tx.Create(&dir).Error
		}, func(tx *gorm.DB) error {
			return verifySiblingNameFree(tx, parent.ID, name, nil, nil)
		}); err != nil {
			return err
		}
		created = &dir
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(formatUserID(actorID), "directory_created", map[string]interface{}{
		"directory_id": created.ID,
		"name":         created.Name,
		"parent_id":    parentID,
		"owner_id":     created.OwnerID,
	})
	return created, nil
}

// CreateFile stores content as a new file under parentID. Quota is charged
// to the parent's owner, who also becomes the file's owner.
func (t *TreeService) CreateFile(ctx context.Context, actorID int64, name string, parentID int64, data []byte) (*models.File, error) {
	storageKey := uuid.New().String()

	var created *models.File
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parent, err := loadDirectory(tx, parentID)
		if err != nil {
			return err
		}
		if err := t.Access.WithTx(tx).Require(ctx, actorID, parent, true); err != nil {
			return err
		}
		if err := verifySiblingNameFree(tx, parent.ID, name, nil, nil); err != nil {
			return err
		}
		if err := t.Quota.WithTx(tx).AuthorizeWrite(ctx, parent.OwnerID, int64(len(data)), nil); err != nil {
			return err
		}

		if err := t.Blobs.Put(ctx, tx, storageKey, data); err != nil {
			return err
		}

		file := models.File{
			Name:              name,
			OwnerID:           parent.OwnerID,
			ParentDirectoryID: parent.ID,
			Size:              int64(len(data)),
			StorageKey:        storageKey,
		}
		if err := insertWithRandomID(tx, func(tx *gorm.DB, id int64) error {
			file.ID = id
			return tx.Create(&file).Error
		}, func(tx *gorm.DB) error {
			return verifySiblingNameFree(tx, parent.ID, name, nil, nil)
		}); err != nil {
			return err
		}
		created = &file
		return nil
	})
	if err != nil {
		// The object store is outside the transaction; drop the orphan.
		_ = t.Blobs.Delete(ctx, nil, storageKey)
		return nil, err
	}

	logger.InfoWithUser(formatUserID(actorID), "file_created", map[string]interface{}{
		"file_id":   created.ID,
		"name":      created.Name,
		"parent_id": parentID,
		"owner_id":  created.OwnerID,
		"size":      created.Size,
	})
	return created, nil
}

// FileUpdate describes a metadata and/or content change. WriteBody selects
// content replacement; Body is only consulted when WriteBody is set.
type FileUpdate struct {
	Name      *string
	ParentID  *int64
	WriteBody bool
	Body      []byte
}

// UpdateFile renames, moves and/or rewrites a file. Moving never changes
// ownership: the file, its current parent and the target parent must share
// one owner or the move is rejected. A content rewrite lands on a fresh
// storage key; the previous key is only removed once the transaction commits.
func (t *TreeService) UpdateFile(ctx context.Context, actorID, fileID int64, update FileUpdate) (*models.File, error) {
	var updated *models.File
	var stagedKey, obsoleteKey string
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access := t.Access.WithTx(tx)

		file, err := loadFile(tx, fileID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, file, true); err != nil {
			return err
		}

		if update.Name != nil || update.ParentID != nil {
			currentParent, err := loadDirectory(tx, file.ParentDirectoryID)
			if err != nil {
				return err
			}
			if err := access.Require(ctx, actorID, currentParent, true); err != nil {
				return err
			}

			targetParent := currentParent
			if update.ParentID != nil {
				targetParent, err = loadDirectory(tx, *update.ParentID)
				if err != nil {
					return err
				}
				if err := access.Require(ctx, actorID, targetParent, true); err != nil {
					return err
				}
				if err := verifySameOwner(file.OwnerID, currentParent.OwnerID, targetParent.OwnerID); err != nil {
					return err
				}
				file.ParentDirectoryID = targetParent.ID
			}
			if update.Name != nil {
				file.Name = *update.Name
			}
			if err := verifySiblingNameFree(tx, targetParent.ID, file.Name, &file.ID, nil); err != nil {
				return err
			}
		}

		if update.WriteBody {
			if err := t.Quota.WithTx(tx).AuthorizeWrite(ctx, file.OwnerID, int64(len(update.Body)), &file.ID); err != nil {
				return err
			}
			// Rewrites go to a fresh key so a rollback leaves the old
			// content untouched on stores outside the transaction.
			stagedKey = uuid.New().String()
			if err := t.Blobs.Put(ctx, tx, stagedKey, update.Body); err != nil {
				return err
			}
			obsoleteKey = file.StorageKey
			file.StorageKey = stagedKey
			file.Size = int64(len(update.Body))
		}

		if err := tx.Save(file).Error; err != nil {
			return err
		}
		updated = file
		return nil
	})
	if err != nil {
		if stagedKey != "" {
			_ = t.Blobs.Delete(ctx, nil, stagedKey)
		}
		return nil, err
	}
	if obsoleteKey != "" {
		t.purgeBlobs(ctx, []string{obsoleteKey})
	}

	logger.InfoWithUser(formatUserID(actorID), "file_updated", map[string]interface{}{
		"file_id": updated.ID,
		"name":    updated.Name,
		"size":    updated.Size,
	})
	return updated, nil
}

// DirectoryUpdate describes a rename and/or reparent.
type DirectoryUpdate struct {
	Name     *string
	ParentID *int64
}

// UpdateDirectory renames or moves a directory. Roots are fixed: any
// rename or move of a root fails as unmovable. Moves reject cycles by
// walking from the target parent up to its root, and reject owner changes.
func (t *TreeService) UpdateDirectory(ctx context.Context, actorID, directoryID int64, update DirectoryUpdate) (*models.Directory, error) {
	var updated *models.Directory
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access := t.Access.WithTx(tx)

		dir, err := loadDirectory(tx, directoryID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, dir, true); err != nil {
			return err
		}

		if update.Name != nil || update.ParentID != nil {
			if dir.IsRoot() {
				return apperr.ErrUnmovableDirectory
			}

			currentParent, err := loadDirectory(tx, *dir.ParentID)
			if err != nil {
				return err
			}
			if err := access.Require(ctx, actorID, currentParent, true); err != nil {
				return err
			}

			targetParent := currentParent
			if update.ParentID != nil {
				targetParent, err = loadDirectory(tx, *update.ParentID)
				if err != nil {
					return err
				}
				if err := access.Require(ctx, actorID, targetParent, true); err != nil {
					return err
				}
				if err := verifyNoCycle(tx, dir, targetParent); err != nil {
					return err
				}
				if err := verifySameOwner(dir.OwnerID, currentParent.OwnerID, targetParent.OwnerID); err != nil {
					return err
				}
				dir.ParentID = &targetParent.ID
			}
			if update.Name != nil {
				dir.Name = *update.Name
			}
			if err := verifySiblingNameFree(tx, targetParent.ID, dir.Name, nil, &dir.ID); err != nil {
				return err
			}
		}

		if err := tx.Save(dir).Error; err != nil {
			return err
		}
		updated = dir
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(formatUserID(actorID), "directory_updated", map[string]interface{}{
		"directory_id": updated.ID,
		"name":         updated.Name,
	})
	return updated, nil
}

// DeleteFile removes a file. The caller needs write access to both the file
// and its parent directory.
func (t *TreeService) DeleteFile(ctx context.Context, actorID, fileID int64) error {
	var removedKeys []string
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access := t.Access.WithTx(tx)

		file, err := loadFile(tx, fileID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, file, true); err != nil {
			return err
		}

		parent, err := loadDirectory(tx, file.ParentDirectoryID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, parent, true); err != nil {
			return err
		}

		return t.removeFile(tx, file, &removedKeys)
	})
	if err != nil {
		return err
	}
	t.purgeBlobs(ctx, removedKeys)

	logger.InfoWithUser(formatUserID(actorID), "file_deleted", map[string]interface{}{
		"file_id": fileID,
	})
	return nil
}

// DeleteDirectory removes a directory. Roots cannot be deleted. Without
// cascade a non-empty directory fails as not_empty; with cascade the whole
// subtree goes, children strictly before their parents.
func (t *TreeService) DeleteDirectory(ctx context.Context, actorID, directoryID int64, cascade bool) error {
	var removedKeys []string
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access := t.Access.WithTx(tx)

		dir, err := loadDirectory(tx, directoryID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, dir, true); err != nil {
			return err
		}
		if dir.IsRoot() {
			return apperr.ErrUnmovableDirectory
		}

		parent, err := loadDirectory(tx, *dir.ParentID)
		if err != nil {
			return err
		}
		if err := access.Require(ctx, actorID, parent, true); err != nil {
			return err
		}

		if !cascade {
			if err := verifyEmpty(tx, dir.ID); err != nil {
				return err
			}
			return t.removeDirectory(tx, dir)
		}
		return t.removeSubtree(tx, dir, &removedKeys)
	})
	if err != nil {
		return err
	}
	t.purgeBlobs(ctx, removedKeys)

	logger.InfoWithUser(formatUserID(actorID), "directory_deleted", map[string]interface{}{
		"directory_id": directoryID,
		"cascade":      cascade,
	})
	return nil
}

// removeSubtree deletes dir and every descendant. The worklist revisits a
// directory once its children are gone, so no entity ever outlives its
// ancestor's removal.
func (t *TreeService) removeSubtree(tx *gorm.DB, dir *models.Directory, removedKeys *[]string) error {
	worklist := []*models.Directory{dir}
	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		var children []models.Directory
		if err := tx.Where("parent_id = ?", current.ID).Find(&children).Error; err != nil {
			return err
		}

		if len(children) == 0 {
			var files []models.File
			if err := tx.Where("parent_directory_id = ?", current.ID).Find(&files).Error; err != nil {
				return err
			}
			for i := range files {
				if err := t.removeFile(tx, &files[i], removedKeys); err != nil {
					return err
				}
			}
			if err := t.removeDirectory(tx, current); err != nil {
				return err
			}
		} else {
			worklist = append(worklist, current)
			for i := range children {
				worklist = append(worklist, &children[i])
			}
		}
	}
	return nil
}

// removeFile drops the metadata inside the transaction and records the
// storage key for purgeBlobs. Content is only removed after commit, so a
// rollback never orphans a live file.
func (t *TreeService) removeFile(tx *gorm.DB, file *models.File, removedKeys *[]string) error {
	if err := tx.Where("target_file_id = ?", file.ID).Delete(&models.Share{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.File{}, "id = ?", file.ID).Error; err != nil {
		return err
	}
	*removedKeys = append(*removedKeys, file.StorageKey)
	return nil
}

func (t *TreeService) removeDirectory(tx *gorm.DB, dir *models.Directory) error {
	if err := tx.Where("target_directory_id = ?", dir.ID).Delete(&models.Share{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Directory{}, "id = ?", dir.ID).Error
}

// purgeBlobs removes content whose metadata is already committed away. A
// failed purge leaves an unreachable object; it is logged, not surfaced.
func (t *TreeService) purgeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := t.Blobs.Delete(ctx, nil, key); err != nil {
			logger.Error("blob_purge_failed", err, map[string]interface{}{"storage_key": key})
		}
	}
}

func loadDirectory(tx *gorm.DB, id int64) (*models.Directory, error) {
	var dir models.Directory
	if err := tx.First(&dir, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &dir, nil
}

func loadFile(tx *gorm.DB, id int64) (*models.File, error) {
	var file models.File
	if err := tx.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// verifySiblingNameFree enforces the merged file+directory namespace within
// one parent: no child other than the excluded entity itself may carry name.
func verifySiblingNameFree(tx *gorm.DB, parentID int64, name string, excludeFileID, excludeDirID *int64) error {
	fileQuery := tx.Model(&models.File{}).Where("parent_directory_id = ? AND name = ?", parentID, name)
	if excludeFileID != nil {
		fileQuery = fileQuery.Where("id <> ?", *excludeFileID)
	}
	var fileCount int64
	if err := fileQuery.Count(&fileCount).Error; err != nil {
		return err
	}
	if fileCount > 0 {
		return apperr.ErrDuplicateName
	}

	dirQuery := tx.Model(&models.Directory{}).Where("parent_id = ? AND name = ?", parentID, name)
	if excludeDirID != nil {
		dirQuery = dirQuery.Where("id <> ?", *excludeDirID)
	}
	var dirCount int64
	if err := dirQuery.Count(&dirCount).Error; err != nil {
		return err
	}
	if dirCount > 0 {
		return apperr.ErrDuplicateName
	}
	return nil
}

// verifyNoCycle walks upward from the target parent through its ancestors;
// encountering the directory being moved means the move would close a loop.
func verifyNoCycle(tx *gorm.DB, dir, targetParent *models.Directory) error {
	current := targetParent
	for {
		if current.ID == dir.ID {
			return apperr.ErrCycleDetected
		}
		if current.ParentID == nil {
			return nil
		}
		next, err := loadDirectory(tx, *current.ParentID)
		if err != nil {
			return err
		}
		current = next
	}
}

func verifySameOwner(ownerIDs ...int64) error {
	for _, id := range ownerIDs[1:] {
		if id != ownerIDs[0] {
			return apperr.ErrTransferralRejected
		}
	}
	return nil
}

func verifyEmpty(tx *gorm.DB, directoryID int64) error {
	var fileCount int64
	if err := tx.Model(&models.File{}).Where("parent_directory_id = ?", directoryID).Count(&fileCount).Error; err != nil {
		return err
	}
	var dirCount int64
	if err := tx.Model(&models.Directory{}).Where("parent_id = ?", directoryID).Count(&dirCount).Error; err != nil {
		return err
	}
	if fileCount > 0 || dirCount > 0 {
		return apperr.ErrNotEmpty
	}
	return nil
}

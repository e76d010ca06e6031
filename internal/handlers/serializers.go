package handlers

import (
	"github.com/filedepot/backend/internal/models"
	"github.com/filedepot/backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func serializeUser(u *models.StorageUser) fiber.Map {
	return fiber.Map{
		"id":          u.ID,
		"displayName": u.DisplayName,
	}
}

func serializeUserInfo(u *models.StorageUser, contacts []models.StorageUser) fiber.Map {
	serialized := make([]fiber.Map, 0, len(contacts))
	for i := range contacts {
		serialized = append(serialized, serializeUser(&contacts[i]))
	}
	info := serializeUser(u)
	info["contacts"] = serialized
	return info
}

func serializeFile(f *models.File) fiber.Map {
	return fiber.Map{
		"id":              f.ID,
		"name":            f.Name,
		"owner":           f.OwnerID,
		"parentDirectory": f.ParentDirectoryID,
		"size":            f.Size,
	}
}

func serializeDirectory(d *models.Directory) fiber.Map {
	return fiber.Map{
		"id":              d.ID,
		"name":            d.Name,
		"owner":           d.OwnerID,
		"parentDirectory": d.ParentID,
	}
}

func serializeDirectoryListing(listing *services.DirectoryListing) fiber.Map {
	subdirectories := make([]fiber.Map, 0, len(listing.Subdirectories))
	for i := range listing.Subdirectories {
		subdirectories = append(subdirectories, serializeDirectory(&listing.Subdirectories[i]))
	}
	files := make([]fiber.Map, 0, len(listing.Files))
	for i := range listing.Files {
		files = append(files, serializeFile(&listing.Files[i]))
	}
	serialized := serializeDirectory(listing.Directory)
	serialized["subdirectories"] = subdirectories
	serialized["files"] = files
	return serialized
}

func serializeShare(s *models.Share) fiber.Map {
	targetType := services.ShareTargetFile
	var targetID int64
	if s.TargetFileID != nil {
		targetID = *s.TargetFileID
	} else if s.TargetDirectoryID != nil {
		targetType = services.ShareTargetDirectory
		targetID = *s.TargetDirectoryID
	}
	return fiber.Map{
		"id":         s.ID,
		"issuer":     s.IssuerID,
		"subject":    s.SubjectID,
		"targetType": targetType,
		"targetID":   targetID,
		"canWrite":   s.CanWrite,
	}
}

package models

// File is a leaf of the directory tree. Size is the byte length of the
// stored content and is what the quota accountant sums; the bytes
// themselves live behind storage.BlobStore under StorageKey.
type File struct {
	ID                int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name              string `json:"name" gorm:"type:varchar(256);not null;uniqueIndex:idx_file_sibling_name"`
	OwnerID           int64  `json:"ownerID" gorm:"not null;index"`
	ParentDirectoryID int64  `json:"parentDirectoryID" gorm:"not null;uniqueIndex:idx_file_sibling_name"`
	Size              int64  `json:"size" gorm:"not null;default:0"`
	StorageKey        string `json:"-" gorm:"type:text;not null"`

	Owner           StorageUser `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	ParentDirectory *Directory  `json:"-" gorm:"foreignKey:ParentDirectoryID;constraint:OnDelete:CASCADE"`
}

func (File) TableName() string {
	return "files"
}

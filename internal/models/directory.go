package models

// Directory is one node of a user's tree. A nil ParentID marks the root;
// exactly one root exists per owner and is created together with the user.
// The owner is fixed at creation and never changes, not even on move.
type Directory struct {
	ID       int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name     string `json:"name" gorm:"type:varchar(256);not null;uniqueIndex:idx_directory_sibling_name"`
	OwnerID  int64  `json:"ownerID" gorm:"not null;index"`
	ParentID *int64 `json:"parentID,omitempty" gorm:"uniqueIndex:idx_directory_sibling_name"`

	Owner    StorageUser `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Parent   *Directory  `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Children []Directory `json:"-" gorm:"foreignKey:ParentID"`
	Files    []File      `json:"-" gorm:"foreignKey:ParentDirectoryID"`
}

func (Directory) TableName() string {
	return "directories"
}

// IsRoot reports whether this directory is the owner's tree root.
func (d *Directory) IsRoot() bool {
	return d.ParentID == nil
}

package models

import "strconv"

// StorageUser is the storage-side record of an identity owned by the
// external authentication authority. The id comes from the token's subject
// claim; rows are created lazily on first sight of a valid token and never
// any other way.
type StorageUser struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	DisplayName string `json:"displayName" gorm:"type:varchar(256);not null"`

	Directories []Directory `json:"-" gorm:"foreignKey:OwnerID"`
	Files       []File      `json:"-" gorm:"foreignKey:OwnerID"`
}

func (StorageUser) TableName() string {
	return "storage_users"
}

// IDString renders the id the way log entries carry user ids.
func (u StorageUser) IDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// ContactEdge is one symmetric acquaintance between two users. Exactly one
// row exists per pair, stored with the smaller id first.
type ContactEdge struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	ContactID int64 `gorm:"primaryKey;autoIncrement:false"`

	User    StorageUser `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Contact StorageUser `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
}

func (ContactEdge) TableName() string {
	return "contact_edges"
}

// Normalize returns the pair in canonical storage order.
func (e ContactEdge) Normalize() ContactEdge {
	if e.UserID > e.ContactID {
		return ContactEdge{UserID: e.ContactID, ContactID: e.UserID}
	}
	return ContactEdge{UserID: e.UserID, ContactID: e.ContactID}
}

package models

// Share grants the subject access to exactly one target, a file or a
// directory, never both and never neither (enforced by a CHECK constraint,
// see database.migrate). Issuer and subject are always distinct users.
type Share struct {
	ID                int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	IssuerID          int64  `json:"issuerID" gorm:"not null;index"`
	SubjectID         int64  `json:"subjectID" gorm:"not null;index"`
	TargetFileID      *int64 `json:"targetFileID,omitempty" gorm:"index"`
	TargetDirectoryID *int64 `json:"targetDirectoryID,omitempty" gorm:"index"`
	CanWrite          bool   `json:"canWrite" gorm:"not null"`

	Issuer          StorageUser `json:"-" gorm:"foreignKey:IssuerID;constraint:OnDelete:CASCADE"`
	Subject         StorageUser `json:"-" gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE"`
	TargetFile      *File       `json:"-" gorm:"foreignKey:TargetFileID;constraint:OnDelete:CASCADE"`
	TargetDirectory *Directory  `json:"-" gorm:"foreignKey:TargetDirectoryID;constraint:OnDelete:CASCADE"`
}

func (Share) TableName() string {
	return "shares"
}

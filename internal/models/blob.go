package models

// FileBlob backs the database BlobStore. Keeping content in a table of its
// own lets writes commit in the same transaction as the file metadata.
type FileBlob struct {
	Key  string `gorm:"primaryKey;type:varchar(64)"`
	Data []byte `gorm:"not null"`
}

func (FileBlob) TableName() string {
	return "file_blobs"
}

package types

import (
	"time"
)

type FileGroup struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	GroupType string    `gorm:"column:group_type;index" json:"group_type"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
}

func (FileGroup) TableName() string {
	return "file_group"
}

// FileItem carries the object-store key and CDN path for one stored object.
// Status stays pending between the row insert and the signed-URL upload.
type FileItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	FileGroupID int64     `gorm:"column:file_group_id;index" json:"file_group_id"`
	BucketKey   string    `gorm:"column:bucket_key;uniqueIndex" json:"bucket_key"`
	CdnPath     string    `gorm:"column:cdn_path" json:"cdn_path"`
	Status      string    `gorm:"column:status;default:pending" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt   time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (FileItem) TableName() string {
	return "file_item"
}

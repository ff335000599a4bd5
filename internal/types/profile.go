package types

import (
	"time"
)

type Profile struct {
	ID               int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID           int64     `gorm:"column:user_id;index" json:"user_id"`
	Nickname         string    `gorm:"column:nickname;uniqueIndex" json:"nickname"`
	ImageFileGroupID *int64    `gorm:"column:image_file_group_id" json:"image_file_group_id,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt        time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (Profile) TableName() string {
	return "profile"
}

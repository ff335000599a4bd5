package types

import (
	"time"
)

// UserNotification is one row of the per-user notification log, written by
// the episode-update fan-out among others.
type UserNotification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"column:user_id;index" json:"user_id"`
	Title     string    `gorm:"column:title" json:"title"`
	Content   string    `gorm:"column:content" json:"content"`
	ReadYn    string    `gorm:"column:read_yn;default:N" json:"read_yn"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
}

func (UserNotification) TableName() string {
	return "user_notification"
}

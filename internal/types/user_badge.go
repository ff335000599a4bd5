package types

import (
	"time"
)

type UserBadge struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"column:user_id;index" json:"user_id"`
	BadgeCode string    `gorm:"column:badge_code" json:"badge_code"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
}

func (UserBadge) TableName() string {
	return "user_badge"
}

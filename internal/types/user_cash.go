package types

import (
	"time"
)

type UserCash struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"column:balance;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (UserCash) TableName() string {
	return "user_cash"
}

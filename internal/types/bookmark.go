package types

import (
	"time"
)

type Bookmark struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex:idx_bookmark_user_product" json:"user_id"`
	ProductID int64     `gorm:"column:product_id;uniqueIndex:idx_bookmark_user_product" json:"product_id"`
	UseYn     string    `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (Bookmark) TableName() string {
	return "bookmark"
}

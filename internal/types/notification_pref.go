package types

import (
	"time"
)

// NotificationPref holds one opt-in row per pref type. A missing row is
// treated as allowed.
type NotificationPref struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex:idx_notif_pref" json:"user_id"`
	PrefType  string    `gorm:"column:pref_type;uniqueIndex:idx_notif_pref" json:"pref_type"`
	AllowYn   string    `gorm:"column:allow_yn;default:Y" json:"allow_yn"`
	CreatedAt time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (NotificationPref) TableName() string {
	return "notification_pref"
}

package types

import (
	"time"
)

// SocialBinding links a local user to one provider identity. It is the
// authoritative link; (sns_type, sns_link_id) is unique across users.
// Integrated bindings point at the canonical account whose tokens every
// member sign-in resolves to.
type SocialBinding struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID             int64     `gorm:"column:user_id;index" json:"user_id"`
	SnsType            string    `gorm:"column:sns_type;uniqueIndex:idx_sns_binding" json:"sns_type"`
	SnsLinkID          string    `gorm:"column:sns_link_id;uniqueIndex:idx_sns_binding" json:"sns_link_id"`
	IntegratedYn       string    `gorm:"column:integrated_yn;default:N" json:"integrated_yn"`
	IntegratedUserID   *int64    `gorm:"column:integrated_user_id" json:"integrated_user_id,omitempty"`
	IntegratedUsername string    `gorm:"column:integrated_username" json:"-"`
	IntegratedPassword string    `gorm:"column:integrated_password" json:"-"`
	CreatedAt          time.Time `gorm:"column:created_date;not null" json:"created_date"`
}

func (SocialBinding) TableName() string {
	return "social_binding"
}

package types

import (
	"time"
)

// User is the local principal. The IdP-side record is referenced by KcUserID;
// withdrawal tombstones Email and flips UseYn but never hard-deletes the row.
type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	KcUserID         string    `gorm:"column:kc_user_id;index" json:"-"`
	Email            string    `gorm:"column:email;uniqueIndex" json:"email"`
	Birthdate        string    `gorm:"column:birthdate" json:"birthdate"`
	Gender           string    `gorm:"column:gender" json:"gender"`
	UseYn            string    `gorm:"column:use_yn;default:Y" json:"use_yn"`
	LatestSignedType string    `gorm:"column:latest_signed_type" json:"latest_signed_type"`
	StaySignedYn     string    `gorm:"column:stay_signed_yn;default:N" json:"stay_signed_yn"`
	AdultYn          string    `gorm:"column:adult_yn;default:N" json:"adult_yn"`
	RoleCode         string    `gorm:"column:role_code;default:reader" json:"role_code"`
	CreatedAt        time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt        time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (User) TableName() string {
	return "user"
}

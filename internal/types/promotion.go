package types

import (
	"time"
)

// AppliedPromotion binds a product to a platform-wide promotion kind
// (waiting-for-free, 6-9-path) with a status and date window.
type AppliedPromotion struct {
	ID            int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ProductID     int64      `gorm:"column:product_id;index" json:"product_id"`
	PromotionType string     `gorm:"column:promotion_type" json:"promotion_type"`
	StatusCode    string     `gorm:"column:status_code;default:apply" json:"status_code"`
	StartDate     *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate       *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt     time.Time  `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (AppliedPromotion) TableName() string {
	return "applied_promotion"
}

// DirectPromotion is the first-visit-free kind with a per-person ticket quota.
type DirectPromotion struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ProductID          int64      `gorm:"column:product_id;index" json:"product_id"`
	PromotionType      string     `gorm:"column:promotion_type;default:free-for-first" json:"promotion_type"`
	StatusCode         string     `gorm:"column:status_code;default:apply" json:"status_code"`
	NumTicketPerPerson int        `gorm:"column:num_of_ticket_per_person;default:0" json:"num_of_ticket_per_person"`
	StartDate          *time.Time `gorm:"column:start_date" json:"start_date,omitempty"`
	EndDate            *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt          time.Time  `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (DirectPromotion) TableName() string {
	return "direct_promotion"
}

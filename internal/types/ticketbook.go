package types

import (
	"time"
)

// Ticketbook is the usable-rights inventory the entitlement engine consults.
// Scope narrows with the columns set: (product, episode) beats (product, NULL)
// beats (NULL, NULL).
type Ticketbook struct {
	ID                int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID            int64      `gorm:"column:user_id;index" json:"user_id"`
	ProductID         *int64     `gorm:"column:product_id;index" json:"product_id,omitempty"`
	EpisodeID         *int64     `gorm:"column:episode_id" json:"episode_id,omitempty"`
	TicketType        string     `gorm:"column:ticket_type" json:"ticket_type"`
	OwnType           string     `gorm:"column:own_type" json:"own_type"`
	RentalExpiredDate *time.Time `gorm:"column:rental_expired_date" json:"rental_expired_date,omitempty"`
	UseYn             string     `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt         time.Time  `gorm:"column:created_date;not null" json:"created_date"`
}

func (Ticketbook) TableName() string {
	return "ticketbook"
}

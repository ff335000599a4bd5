package types

import (
	"time"
)

// Giftbook is the awarded-but-not-yet-consumed voucher inventory. Promotions
// mint here; AcquisitionType+AcquisitionID identify the minting promotion and
// back the at-most-once guards. ReceivedDate is the calendar day (KST) used by
// the 6-9-path once-per-day guard.
type Giftbook struct {
	ID                int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID            int64      `gorm:"column:user_id;uniqueIndex:idx_gift_acquisition" json:"user_id"`
	ProductID         *int64     `gorm:"column:product_id;index" json:"product_id,omitempty"`
	TicketType        string     `gorm:"column:ticket_type" json:"ticket_type"`
	OwnType           string     `gorm:"column:own_type;default:rental" json:"own_type"`
	RentalExpiredDate *time.Time `gorm:"column:rental_expired_date" json:"rental_expired_date,omitempty"`
	AcquisitionType   string     `gorm:"column:acquisition_type;uniqueIndex:idx_gift_acquisition" json:"acquisition_type"`
	AcquisitionID     int64      `gorm:"column:acquisition_id;uniqueIndex:idx_gift_acquisition" json:"acquisition_id"`
	ReceivedDate      string     `gorm:"column:received_date;uniqueIndex:idx_gift_acquisition" json:"received_date"`
	Seq               int        `gorm:"column:seq;uniqueIndex:idx_gift_acquisition;default:0" json:"seq"`
	CreatedAt         time.Time  `gorm:"column:created_date;not null" json:"created_date"`
}

func (Giftbook) TableName() string {
	return "giftbook"
}

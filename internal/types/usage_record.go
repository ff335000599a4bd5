package types

import (
	"time"
)

// UsageRecord is one (user, product, episode) read. UpdatedAt anchors the
// interest-decay clock; RecommendYn is the per-episode like flag that product
// and episode recommend counters are recomputed from.
type UsageRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID      int64     `gorm:"column:user_id;index:idx_usage_user_product" json:"user_id"`
	ProductID   int64     `gorm:"column:product_id;index:idx_usage_user_product" json:"product_id"`
	EpisodeID   *int64    `gorm:"column:episode_id;index" json:"episode_id,omitempty"`
	RecommendYn string    `gorm:"column:recommend_yn;default:N" json:"recommend_yn"`
	UseYn       string    `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt   time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt   time.Time `gorm:"column:updated_date;not null;index" json:"updated_date"`
}

func (UsageRecord) TableName() string {
	return "usage_record"
}

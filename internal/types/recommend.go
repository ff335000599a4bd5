package types

import (
	"time"

	"gorm.io/datatypes"
)

// RecommendSection maps a home slot to the feature it is filled from.
// Rows 2-5 serve guests, 6-9 serve signed-in readers.
type RecommendSection struct {
	ID          int64  `gorm:"primaryKey;column:id" json:"id"`
	SectionNo   int    `gorm:"column:section_no" json:"section_no"`
	FeatureName string `gorm:"column:feature_name" json:"feature_name"`
	SignedYn    string `gorm:"column:signed_yn;default:N" json:"signed_yn"`
	UseYn       string `gorm:"column:use_yn;default:Y" json:"use_yn"`
}

func (RecommendSection) TableName() string {
	return "recommend_section"
}

// RecommendSetTopic is one candidate payload of the feature/target matrix.
// NovelList is a JSON array of product ids.
type RecommendSetTopic struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Feature   string         `gorm:"column:feature;index" json:"feature"`
	Target    int            `gorm:"column:target" json:"target"`
	Title     string         `gorm:"column:title" json:"title"`
	NovelList datatypes.JSON `gorm:"column:novel_list" json:"novel_list"`
	UseYn     string         `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt time.Time      `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt time.Time      `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (RecommendSetTopic) TableName() string {
	return "recommend_set_topic"
}

// RecommendSimilar carries the offline-computed similar-product id list per
// product, scoped by type (content, genre, cart).
type RecommendSimilar struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ProductID   int64          `gorm:"column:product_id;index" json:"product_id"`
	Type        string         `gorm:"column:type" json:"type"`
	SimilarList datatypes.JSON `gorm:"column:similar_list" json:"similar_list"`
	UpdatedAt   time.Time      `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (RecommendSimilar) TableName() string {
	return "algorithm_recommend_similar"
}

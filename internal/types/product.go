package types

import (
	"time"
)

// Product is a novel. Counters are recomputed from source tables after every
// mutation, never incremented in place.
type Product struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Title                string     `gorm:"column:title;not null" json:"title"`
	PriceType            string     `gorm:"column:price_type;default:free" json:"price_type"`
	StatusCode           string     `gorm:"column:status_code;default:ongoing" json:"status_code"`
	RatingsCode          string     `gorm:"column:ratings_code;default:all" json:"ratings_code"`
	AuthorName           string     `gorm:"column:author_name" json:"author_name"`
	IllustratorName      string     `gorm:"column:illustrator_name" json:"illustrator_name"`
	PublishDays          int        `gorm:"column:publish_days;default:0" json:"publish_days"`
	ThumbnailFileGroupID *int64     `gorm:"column:thumbnail_file_group_id" json:"thumbnail_file_group_id,omitempty"`
	GenreKeywordID       int64      `gorm:"column:genre_keyword_id" json:"genre_keyword_id"`
	SubGenreKeywordID    int64      `gorm:"column:sub_genre_keyword_id" json:"sub_genre_keyword_id"`
	OpenYn               string     `gorm:"column:open_yn;default:N" json:"open_yn"`
	MonopolyYn           string     `gorm:"column:monopoly_yn;default:N" json:"monopoly_yn"`
	ContractYn           string     `gorm:"column:contract_yn;default:N" json:"contract_yn"`
	LastEpisodeDate      *time.Time `gorm:"column:last_episode_date" json:"last_episode_date,omitempty"`
	PaidOpenDate         *time.Time `gorm:"column:paid_open_date" json:"paid_open_date,omitempty"`
	PaidEpisodeNo        int        `gorm:"column:paid_episode_no;default:0" json:"paid_episode_no"`
	CountHit             int64      `gorm:"column:count_hit;default:0" json:"count_hit"`
	CountRecommend       int64      `gorm:"column:count_recommend;default:0" json:"count_recommend"`
	CountBookmark        int64      `gorm:"column:count_bookmark;default:0" json:"count_bookmark"`
	UseYn                string     `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt            time.Time  `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt            time.Time  `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (Product) TableName() string {
	return "product"
}

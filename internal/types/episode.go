package types

import (
	"time"
)

// Episode numbering is 1-based per product and monotonic; deleting leaves a
// gap. OpenChangedDate records the last manual open flip so the reserved
// publish batch can tell a manual override from its own schedule.
type Episode struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	ProductID          int64      `gorm:"column:product_id;uniqueIndex:idx_episode_no" json:"product_id"`
	EpisodeNo          int        `gorm:"column:episode_no;uniqueIndex:idx_episode_no" json:"episode_no"`
	Title              string     `gorm:"column:title;not null" json:"title"`
	Content            string     `gorm:"column:content;type:text" json:"content"`
	AuthorComment      string     `gorm:"column:author_comment" json:"author_comment"`
	PriceType          string     `gorm:"column:price_type;default:free" json:"price_type"`
	OpenYn             string     `gorm:"column:open_yn;default:N" json:"open_yn"`
	CommentOpenYn      string     `gorm:"column:comment_open_yn;default:Y" json:"comment_open_yn"`
	EvaluationOpenYn   string     `gorm:"column:evaluation_open_yn;default:Y" json:"evaluation_open_yn"`
	PublishReserveYn   string     `gorm:"column:publish_reserve_yn;default:N" json:"publish_reserve_yn"`
	PublishReserveDate *time.Time `gorm:"column:publish_reserve_date" json:"publish_reserve_date,omitempty"`
	EpubFileID         *int64     `gorm:"column:epub_file_id" json:"epub_file_id,omitempty"`
	OpenChangedDate    *time.Time `gorm:"column:open_changed_date" json:"open_changed_date,omitempty"`
	CountHit           int64      `gorm:"column:count_hit;default:0" json:"count_hit"`
	CountRecommend     int64      `gorm:"column:count_recommend;default:0" json:"count_recommend"`
	CountComment       int64      `gorm:"column:count_comment;default:0" json:"count_comment"`
	CountEvaluation    int64      `gorm:"column:count_evaluation;default:0" json:"count_evaluation"`
	UseYn              string     `gorm:"column:use_yn;default:Y" json:"use_yn"`
	CreatedAt          time.Time  `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt          time.Time  `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (Episode) TableName() string {
	return "episode"
}

package types

import (
	"time"
)

// UserQuest tracks the onboarding quests assigned at signup.
type UserQuest struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID     int64     `gorm:"column:user_id;index" json:"user_id"`
	QuestCode  string    `gorm:"column:quest_code" json:"quest_code"`
	StatusCode string    `gorm:"column:status_code;default:assigned" json:"status_code"`
	CreatedAt  time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt  time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (UserQuest) TableName() string {
	return "user_quest"
}

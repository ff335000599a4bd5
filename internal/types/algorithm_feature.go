package types

import (
	"time"
)

// AlgorithmFeature is the per-user feature vector filled by the offline
// segmentation batch. FeatureBasic is a named segment like "male1"; the
// numbered columns carry the integer target tag per recommendation feature
// slot.
type AlgorithmFeature struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID       int64     `gorm:"column:user_id;uniqueIndex" json:"user_id"`
	FeatureBasic string    `gorm:"column:feature_basic" json:"feature_basic"`
	Feature1     int       `gorm:"column:feature_1" json:"feature_1"`
	Feature2     int       `gorm:"column:feature_2" json:"feature_2"`
	Feature3     int       `gorm:"column:feature_3" json:"feature_3"`
	Feature4     int       `gorm:"column:feature_4" json:"feature_4"`
	Feature5     int       `gorm:"column:feature_5" json:"feature_5"`
	Feature6     int       `gorm:"column:feature_6" json:"feature_6"`
	Feature7     int       `gorm:"column:feature_7" json:"feature_7"`
	Feature8     int       `gorm:"column:feature_8" json:"feature_8"`
	Feature9     int       `gorm:"column:feature_9" json:"feature_9"`
	Feature10    int       `gorm:"column:feature_10" json:"feature_10"`
	CreatedAt    time.Time `gorm:"column:created_date;not null" json:"created_date"`
	UpdatedAt    time.Time `gorm:"column:updated_date;not null" json:"updated_date"`
}

func (AlgorithmFeature) TableName() string {
	return "algorithm_feature"
}

// TargetFor returns the target tag assigned for a numbered feature slot
// (1-based). Unassigned slots fall back to target 1.
func (af *AlgorithmFeature) TargetFor(slot int) int {
	if af == nil {
		return 1
	}
	targets := []int{
		af.Feature1, af.Feature2, af.Feature3, af.Feature4, af.Feature5,
		af.Feature6, af.Feature7, af.Feature8, af.Feature9, af.Feature10,
	}
	if slot < 1 || slot > len(targets) {
		return 1
	}
	if targets[slot-1] == 0 {
		return 1
	}
	return targets[slot-1]
}

package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type ProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profile *types.Profile) (*types.Profile, error)
	NicknameExists(ctx context.Context, tx *gorm.DB, nickname string) (bool, error)
	GetByNickname(ctx context.Context, tx *gorm.DB, nickname string) (*types.Profile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.Profile, error)
	CreatePrefs(ctx context.Context, tx *gorm.DB, prefs []*types.NotificationPref) error
	GetPref(ctx context.Context, tx *gorm.DB, userID int64, prefType string) (*types.NotificationPref, error)
	EnsureFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) error
	GetFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) (*types.AlgorithmFeature, error)
	DeleteFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) error
	CreateBadge(ctx context.Context, tx *gorm.DB, badge *types.UserBadge) error
	CreateQuests(ctx context.Context, tx *gorm.DB, quests []*types.UserQuest) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (pr *profileRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return pr.db
}

func (pr *profileRepo) Create(ctx context.Context, tx *gorm.DB, profile *types.Profile) (*types.Profile, error) {
	if err := pr.conn(tx).WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (pr *profileRepo) NicknameExists(ctx context.Context, tx *gorm.DB, nickname string) (bool, error) {
	var count int64
	if err := pr.conn(tx).WithContext(ctx).
		Model(&types.Profile{}).
		Where("nickname = ?", nickname).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (pr *profileRepo) GetByNickname(ctx context.Context, tx *gorm.DB, nickname string) (*types.Profile, error) {
	var result types.Profile
	err := pr.conn(tx).WithContext(ctx).
		Where("nickname = ?", nickname).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *profileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*types.Profile, error) {
	var result types.Profile
	err := pr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *profileRepo) CreatePrefs(ctx context.Context, tx *gorm.DB, prefs []*types.NotificationPref) error {
	if len(prefs) == 0 {
		return nil
	}
	return pr.conn(tx).WithContext(ctx).Create(&prefs).Error
}

func (pr *profileRepo) GetPref(ctx context.Context, tx *gorm.DB, userID int64, prefType string) (*types.NotificationPref, error) {
	var result types.NotificationPref
	err := pr.conn(tx).WithContext(ctx).
		Where("user_id = ? AND pref_type = ?", userID, prefType).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// EnsureFeatureVector is idempotent on user_id: a second signup attempt for
// the same local row must not fail here.
func (pr *profileRepo) EnsureFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) error {
	vector := types.AlgorithmFeature{UserID: userID}
	return pr.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&vector).Error
}

func (pr *profileRepo) GetFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) (*types.AlgorithmFeature, error) {
	var result types.AlgorithmFeature
	err := pr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *profileRepo) DeleteFeatureVector(ctx context.Context, tx *gorm.DB, userID int64) error {
	return pr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.AlgorithmFeature{}).Error
}

func (pr *profileRepo) CreateBadge(ctx context.Context, tx *gorm.DB, badge *types.UserBadge) error {
	return pr.conn(tx).WithContext(ctx).Create(badge).Error
}

func (pr *profileRepo) CreateQuests(ctx context.Context, tx *gorm.DB, quests []*types.UserQuest) error {
	if len(quests) == 0 {
		return nil
	}
	return pr.conn(tx).WithContext(ctx).Create(&quests).Error
}

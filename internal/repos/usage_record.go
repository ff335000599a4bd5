package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type UsageRecordRepo interface {
	CountByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (int64, error)
	LatestByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (*types.UsageRecord, error)
	LatestByUser(ctx context.Context, tx *gorm.DB, userID int64) (*types.UsageRecord, error)
	GetByUserEpisode(ctx context.Context, tx *gorm.DB, userID, episodeID int64) (*types.UsageRecord, error)
	RecordView(ctx context.Context, tx *gorm.DB, userID, productID int64, episodeID *int64, now time.Time) (*types.UsageRecord, error)
	SetRecommend(ctx context.Context, tx *gorm.DB, recordID int64, recommendYn string, now time.Time) error
	Touch(ctx context.Context, tx *gorm.DB, recordID int64, now time.Time) error
	CountReadEpisodes(ctx context.Context, tx *gorm.DB, userID, productID int64) (int64, error)
}

type usageRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageRecordRepo(db *gorm.DB, baseLog *logger.Logger) UsageRecordRepo {
	return &usageRecordRepo{db: db, log: baseLog.With("repo", "UsageRecordRepo")}
}

func (ur *usageRecordRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ur.db
}

func (ur *usageRecordRepo) CountByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (int64, error) {
	var count int64
	err := lockForUpdate(ur.conn(tx).WithContext(ctx)).
		Model(&types.UsageRecord{}).
		Where("user_id = ? AND product_id = ? AND use_yn = ?", userID, productID, types.YnYes).
		Count(&count).Error
	return count, err
}

func (ur *usageRecordRepo) LatestByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (*types.UsageRecord, error) {
	var result types.UsageRecord
	err := ur.conn(tx).WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND use_yn = ?", userID, productID, types.YnYes).
		Order("updated_date DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ur *usageRecordRepo) LatestByUser(ctx context.Context, tx *gorm.DB, userID int64) (*types.UsageRecord, error) {
	var result types.UsageRecord
	err := ur.conn(tx).WithContext(ctx).
		Where("user_id = ? AND use_yn = ?", userID, types.YnYes).
		Order("updated_date DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ur *usageRecordRepo) GetByUserEpisode(ctx context.Context, tx *gorm.DB, userID, episodeID int64) (*types.UsageRecord, error) {
	var result types.UsageRecord
	err := ur.conn(tx).WithContext(ctx).
		Where("user_id = ? AND episode_id = ? AND use_yn = ?", userID, episodeID, types.YnYes).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RecordView inserts or refreshes the usage row for one view. The refresh
// keeps one row per (user, product, episode) and restamps updated_date, which
// is the interest-decay anchor.
func (ur *usageRecordRepo) RecordView(ctx context.Context, tx *gorm.DB, userID, productID int64, episodeID *int64, now time.Time) (*types.UsageRecord, error) {
	conn := ur.conn(tx).WithContext(ctx)
	var existing types.UsageRecord
	query := conn.Where("user_id = ? AND product_id = ?", userID, productID)
	if episodeID != nil {
		query = query.Where("episode_id = ?", *episodeID)
	} else {
		query = query.Where("episode_id IS NULL")
	}
	err := query.First(&existing).Error
	if err == nil {
		if uErr := conn.Model(&types.UsageRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"updated_date": now, "use_yn": types.YnYes}).Error; uErr != nil {
			return nil, uErr
		}
		existing.UpdatedAt = now
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	record := types.UsageRecord{
		UserID:      userID,
		ProductID:   productID,
		EpisodeID:   episodeID,
		RecommendYn: types.YnNo,
		UseYn:       types.YnYes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cErr := conn.Create(&record).Error; cErr != nil {
		return nil, cErr
	}
	return &record, nil
}

func (ur *usageRecordRepo) SetRecommend(ctx context.Context, tx *gorm.DB, recordID int64, recommendYn string, now time.Time) error {
	return ur.conn(tx).WithContext(ctx).
		Model(&types.UsageRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{"recommend_yn": recommendYn, "updated_date": now}).Error
}

func (ur *usageRecordRepo) Touch(ctx context.Context, tx *gorm.DB, recordID int64, now time.Time) error {
	return ur.conn(tx).WithContext(ctx).
		Model(&types.UsageRecord{}).
		Where("id = ?", recordID).
		Update("updated_date", now).Error
}

func (ur *usageRecordRepo) CountReadEpisodes(ctx context.Context, tx *gorm.DB, userID, productID int64) (int64, error) {
	var count int64
	err := ur.conn(tx).WithContext(ctx).
		Model(&types.UsageRecord{}).
		Where("user_id = ? AND product_id = ? AND episode_id IS NOT NULL AND use_yn = ?",
			userID, productID, types.YnYes).
		Count(&count).Error
	return count, err
}

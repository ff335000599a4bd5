package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
)

// CounterService refreshes cached counters from their source tables. Counts
// are always recomputed by COUNT over the sources inside the caller's
// transaction, never incremented, so concurrent writers cannot drift the
// cached value.
type CounterService interface {
	RecomputeEpisodeCounters(ctx context.Context, tx *gorm.DB, episodeID int64) error
	RecomputeProductCounters(ctx context.Context, tx *gorm.DB, productID int64) error
}

type counterService struct {
	log *logger.Logger
	db  *gorm.DB
}

func NewCounterService(log *logger.Logger, db *gorm.DB) CounterService {
	return &counterService{log: log.With("service", "CounterService"), db: db}
}

func (cs *counterService) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cs.db
}

func (cs *counterService) RecomputeEpisodeCounters(ctx context.Context, tx *gorm.DB, episodeID int64) error {
	return cs.conn(tx).WithContext(ctx).Exec(`
		UPDATE episode SET
			count_hit = (
				SELECT COUNT(*) FROM usage_record
				WHERE episode_id = ? AND use_yn = 'Y'
			),
			count_recommend = (
				SELECT COUNT(*) FROM usage_record
				WHERE episode_id = ? AND use_yn = 'Y' AND recommend_yn = 'Y'
			)
		WHERE id = ?`,
		episodeID, episodeID, episodeID).Error
}

func (cs *counterService) RecomputeProductCounters(ctx context.Context, tx *gorm.DB, productID int64) error {
	return cs.conn(tx).WithContext(ctx).Exec(`
		UPDATE product SET
			count_hit = (
				SELECT COUNT(*) FROM usage_record
				WHERE product_id = ? AND use_yn = 'Y'
			),
			count_recommend = (
				SELECT COUNT(*) FROM usage_record
				WHERE product_id = ? AND use_yn = 'Y' AND recommend_yn = 'Y'
			),
			count_bookmark = (
				SELECT COUNT(*) FROM bookmark
				WHERE product_id = ?
			)
		WHERE id = ?`,
		productID, productID, productID, productID).Error
}

package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type UserNotificationRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.UserNotification) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*types.UserNotification, error)
}

type userNotificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserNotificationRepo(db *gorm.DB, baseLog *logger.Logger) UserNotificationRepo {
	return &userNotificationRepo{db: db, log: baseLog.With("repo", "UserNotificationRepo")}
}

func (nr *userNotificationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return nr.db
}

func (nr *userNotificationRepo) CreateBatch(ctx context.Context, tx *gorm.DB, rows []*types.UserNotification) error {
	if len(rows) == 0 {
		return nil
	}
	return nr.conn(tx).WithContext(ctx).CreateInBatches(&rows, 500).Error
}

func (nr *userNotificationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID int64, limit int) ([]*types.UserNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var results []*types.UserNotification
	if err := nr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_date DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

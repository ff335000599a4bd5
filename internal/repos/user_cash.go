package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type UserCashRepo interface {
	GetForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*types.UserCash, error)
	Ensure(ctx context.Context, tx *gorm.DB, userID int64) error
	Debit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, now time.Time) error
	Credit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, now time.Time) error
}

type userCashRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserCashRepo(db *gorm.DB, baseLog *logger.Logger) UserCashRepo {
	return &userCashRepo{db: db, log: baseLog.With("repo", "UserCashRepo")}
}

func (cr *userCashRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *userCashRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*types.UserCash, error) {
	var result types.UserCash
	err := lockForUpdate(cr.conn(tx).WithContext(ctx)).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *userCashRepo) Ensure(ctx context.Context, tx *gorm.DB, userID int64) error {
	var count int64
	conn := cr.conn(tx).WithContext(ctx)
	if err := conn.Model(&types.UserCash{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return conn.Create(&types.UserCash{UserID: userID}).Error
}

// Debit refuses to go negative at the SQL level so a racing debit cannot
// overdraw even without the row lock.
func (cr *userCashRepo) Debit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, now time.Time) error {
	result := cr.conn(tx).WithContext(ctx).
		Model(&types.UserCash{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance - ?", amount),
			"updated_date": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (cr *userCashRepo) Credit(ctx context.Context, tx *gorm.DB, userID int64, amount int64, now time.Time) error {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.UserCash{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"updated_date": now,
		}).Error
}

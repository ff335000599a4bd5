package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type PromotionRepo interface {
	ActiveDirectByProduct(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) (*types.DirectPromotion, error)
	ActiveAppliedByProduct(ctx context.Context, tx *gorm.DB, productID int64, promotionType string, now time.Time) (*types.AppliedPromotion, error)
	ActiveTypesByProduct(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) ([]string, error)
}

type promotionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromotionRepo(db *gorm.DB, baseLog *logger.Logger) PromotionRepo {
	return &promotionRepo{db: db, log: baseLog.With("repo", "PromotionRepo")}
}

func (pr *promotionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return pr.db
}

func (pr *promotionRepo) ActiveDirectByProduct(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) (*types.DirectPromotion, error) {
	var result types.DirectPromotion
	err := pr.conn(tx).WithContext(ctx).
		Where("product_id = ? AND status_code = ?", productID, types.PromotionStatusIng).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date > ?", now).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *promotionRepo) ActiveAppliedByProduct(ctx context.Context, tx *gorm.DB, productID int64, promotionType string, now time.Time) (*types.AppliedPromotion, error) {
	var result types.AppliedPromotion
	err := pr.conn(tx).WithContext(ctx).
		Where("product_id = ? AND promotion_type = ? AND status_code = ?",
			productID, promotionType, types.PromotionStatusIng).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date > ?", now).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ActiveTypesByProduct feeds the product-card promotion badges.
func (pr *promotionRepo) ActiveTypesByProduct(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) ([]string, error) {
	conn := pr.conn(tx).WithContext(ctx)
	var applied []types.AppliedPromotion
	if err := conn.
		Where("product_id = ? AND status_code = ?", productID, types.PromotionStatusIng).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date > ?", now).
		Find(&applied).Error; err != nil {
		return nil, err
	}
	kinds := make([]string, 0, len(applied)+1)
	for _, ap := range applied {
		kinds = append(kinds, ap.PromotionType)
	}
	direct, err := pr.ActiveDirectByProduct(ctx, tx, productID, now)
	if err != nil {
		return nil, err
	}
	if direct != nil {
		kinds = append(kinds, direct.PromotionType)
	}
	return kinds, nil
}

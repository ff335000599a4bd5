package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type BookmarkRepo interface {
	GetByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (*types.Bookmark, error)
	UserIDsByProduct(ctx context.Context, tx *gorm.DB, productID int64) ([]int64, error)
}

type bookmarkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBookmarkRepo(db *gorm.DB, baseLog *logger.Logger) BookmarkRepo {
	return &bookmarkRepo{db: db, log: baseLog.With("repo", "BookmarkRepo")}
}

func (br *bookmarkRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return br.db
}

func (br *bookmarkRepo) GetByUserProduct(ctx context.Context, tx *gorm.DB, userID, productID int64) (*types.Bookmark, error) {
	var result types.Bookmark
	err := br.conn(tx).WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND use_yn = ?", userID, productID, types.YnYes).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (br *bookmarkRepo) UserIDsByProduct(ctx context.Context, tx *gorm.DB, productID int64) ([]int64, error) {
	var userIDs []int64
	if err := br.conn(tx).WithContext(ctx).
		Model(&types.Bookmark{}).
		Where("product_id = ? AND use_yn = ?", productID, types.YnYes).
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

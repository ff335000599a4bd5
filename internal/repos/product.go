package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type ProductRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, productID int64) (*types.Product, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, productIDs []int64) ([]*types.Product, error)
	SetLastEpisodeDateIfNull(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) error
	ListOpen(ctx context.Context, tx *gorm.DB, ratingsCode string, page, perPage int) ([]*types.Product, error)
	ListByAuthor(ctx context.Context, tx *gorm.DB, authorName string, excludeProductID int64) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (pr *productRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return pr.db
}

func (pr *productRepo) GetByID(ctx context.Context, tx *gorm.DB, productID int64) (*types.Product, error) {
	var result types.Product
	err := pr.conn(tx).WithContext(ctx).
		Where("id = ? AND use_yn = ?", productID, types.YnYes).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (pr *productRepo) GetByIDs(ctx context.Context, tx *gorm.DB, productIDs []int64) ([]*types.Product, error) {
	var results []*types.Product
	if len(productIDs) == 0 {
		return results, nil
	}
	if err := pr.conn(tx).WithContext(ctx).
		Where("id IN ? AND use_yn = ?", productIDs, types.YnYes).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SetLastEpisodeDateIfNull only fires for the first-ever open episode of the
// product; later opens keep the original date.
func (pr *productRepo) SetLastEpisodeDateIfNull(ctx context.Context, tx *gorm.DB, productID int64, now time.Time) error {
	return pr.conn(tx).WithContext(ctx).
		Model(&types.Product{}).
		Where("id = ? AND last_episode_date IS NULL", productID).
		Update("last_episode_date", now).Error
}

func (pr *productRepo) ListOpen(ctx context.Context, tx *gorm.DB, ratingsCode string, page, perPage int) ([]*types.Product, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	query := pr.conn(tx).WithContext(ctx).
		Where("open_yn = ? AND use_yn = ?", types.YnYes, types.YnYes)
	if ratingsCode != "" {
		query = query.Where("ratings_code = ?", ratingsCode)
	}
	var results []*types.Product
	if err := query.
		Order("last_episode_date DESC NULLS LAST").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *productRepo) ListByAuthor(ctx context.Context, tx *gorm.DB, authorName string, excludeProductID int64) ([]*types.Product, error) {
	var results []*types.Product
	if err := pr.conn(tx).WithContext(ctx).
		Where("author_name = ? AND id <> ? AND open_yn = ? AND use_yn = ?",
			authorName, excludeProductID, types.YnYes, types.YnYes).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

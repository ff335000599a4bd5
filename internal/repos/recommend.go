package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type RecommendRepo interface {
	SectionsByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []int64) ([]*types.RecommendSection, error)
	FirstTopicByFeature(ctx context.Context, tx *gorm.DB, feature string) (*types.RecommendSetTopic, error)
	TopicByFeatureTarget(ctx context.Context, tx *gorm.DB, feature string, target int) (*types.RecommendSetTopic, error)
	SimilarByProduct(ctx context.Context, tx *gorm.DB, productID int64, similarType string) (*types.RecommendSimilar, error)
}

type recommendRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendRepo(db *gorm.DB, baseLog *logger.Logger) RecommendRepo {
	return &recommendRepo{db: db, log: baseLog.With("repo", "RecommendRepo")}
}

func (rr *recommendRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *recommendRepo) SectionsByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []int64) ([]*types.RecommendSection, error) {
	var results []*types.RecommendSection
	if len(sectionIDs) == 0 {
		return results, nil
	}
	if err := rr.conn(tx).WithContext(ctx).
		Where("id IN ? AND use_yn = ?", sectionIDs, types.YnYes).
		Order("section_no ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendRepo) FirstTopicByFeature(ctx context.Context, tx *gorm.DB, feature string) (*types.RecommendSetTopic, error) {
	var result types.RecommendSetTopic
	err := rr.conn(tx).WithContext(ctx).
		Where("feature = ? AND use_yn = ?", feature, types.YnYes).
		Order("id ASC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *recommendRepo) TopicByFeatureTarget(ctx context.Context, tx *gorm.DB, feature string, target int) (*types.RecommendSetTopic, error) {
	var result types.RecommendSetTopic
	err := rr.conn(tx).WithContext(ctx).
		Where("feature = ? AND target = ? AND use_yn = ?", feature, target, types.YnYes).
		Order("id ASC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (rr *recommendRepo) SimilarByProduct(ctx context.Context, tx *gorm.DB, productID int64, similarType string) (*types.RecommendSimilar, error) {
	var result types.RecommendSimilar
	err := rr.conn(tx).WithContext(ctx).
		Where("product_id = ? AND type = ?", productID, similarType).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type SocialBindingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, binding *types.SocialBinding) (*types.SocialBinding, error)
	GetBySns(ctx context.Context, tx *gorm.DB, snsType, snsLinkID string) (*types.SocialBinding, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.SocialBinding, error)
	ListByIntegratedUserID(ctx context.Context, tx *gorm.DB, integratedUserID int64) ([]*types.SocialBinding, error)
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error
}

type socialBindingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSocialBindingRepo(db *gorm.DB, baseLog *logger.Logger) SocialBindingRepo {
	return &socialBindingRepo{db: db, log: baseLog.With("repo", "SocialBindingRepo")}
}

func (sr *socialBindingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return sr.db
}

func (sr *socialBindingRepo) Create(ctx context.Context, tx *gorm.DB, binding *types.SocialBinding) (*types.SocialBinding, error) {
	if err := sr.conn(tx).WithContext(ctx).Create(binding).Error; err != nil {
		return nil, err
	}
	return binding, nil
}

func (sr *socialBindingRepo) GetBySns(ctx context.Context, tx *gorm.DB, snsType, snsLinkID string) (*types.SocialBinding, error) {
	var result types.SocialBinding
	err := sr.conn(tx).WithContext(ctx).
		Where("sns_type = ? AND sns_link_id = ?", snsType, snsLinkID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (sr *socialBindingRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.SocialBinding, error) {
	var results []*types.SocialBinding
	if err := sr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListByIntegratedUserID returns every binding in an integrated-ID group,
// the canonical account's own bindings included.
func (sr *socialBindingRepo) ListByIntegratedUserID(ctx context.Context, tx *gorm.DB, integratedUserID int64) ([]*types.SocialBinding, error) {
	var results []*types.SocialBinding
	if err := sr.conn(tx).WithContext(ctx).
		Where("integrated_yn = ? AND integrated_user_id = ?", types.YnYes, integratedUserID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *socialBindingRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID int64) error {
	return sr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.SocialBinding{}).Error
}

package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type FileRepo interface {
	CreateGroupWithItem(ctx context.Context, tx *gorm.DB, groupType, bucketKey, cdnPath string) (*types.FileGroup, *types.FileItem, error)
	BucketKeyExists(ctx context.Context, tx *gorm.DB, bucketKey string) (bool, error)
	GetItemByGroupID(ctx context.Context, tx *gorm.DB, fileGroupID int64) (*types.FileItem, error)
	SetItemStatus(ctx context.Context, tx *gorm.DB, itemID int64, status string) error
	ListStalePending(ctx context.Context, tx *gorm.DB, olderThan time.Time) ([]*types.FileItem, error)
	DeleteItem(ctx context.Context, tx *gorm.DB, itemID int64) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: baseLog.With("repo", "FileRepo")}
}

func (fr *fileRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return fr.db
}

func (fr *fileRepo) CreateGroupWithItem(ctx context.Context, tx *gorm.DB, groupType, bucketKey, cdnPath string) (*types.FileGroup, *types.FileItem, error) {
	conn := fr.conn(tx).WithContext(ctx)
	group := types.FileGroup{GroupType: groupType}
	if err := conn.Create(&group).Error; err != nil {
		return nil, nil, err
	}
	item := types.FileItem{
		FileGroupID: group.ID,
		BucketKey:   bucketKey,
		CdnPath:     cdnPath,
		Status:      types.FileStatusPending,
	}
	if err := conn.Create(&item).Error; err != nil {
		return nil, nil, err
	}
	return &group, &item, nil
}

func (fr *fileRepo) BucketKeyExists(ctx context.Context, tx *gorm.DB, bucketKey string) (bool, error) {
	var count int64
	if err := fr.conn(tx).WithContext(ctx).
		Model(&types.FileItem{}).
		Where("bucket_key = ?", bucketKey).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (fr *fileRepo) GetItemByGroupID(ctx context.Context, tx *gorm.DB, fileGroupID int64) (*types.FileItem, error) {
	var result types.FileItem
	err := fr.conn(tx).WithContext(ctx).
		Where("file_group_id = ?", fileGroupID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (fr *fileRepo) SetItemStatus(ctx context.Context, tx *gorm.DB, itemID int64, status string) error {
	return fr.conn(tx).WithContext(ctx).
		Model(&types.FileItem{}).
		Where("id = ?", itemID).
		Update("status", status).Error
}

func (fr *fileRepo) ListStalePending(ctx context.Context, tx *gorm.DB, olderThan time.Time) ([]*types.FileItem, error) {
	var results []*types.FileItem
	if err := fr.conn(tx).WithContext(ctx).
		Where("status = ? AND created_date < ?", types.FileStatusPending, olderThan).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *fileRepo) DeleteItem(ctx context.Context, tx *gorm.DB, itemID int64) error {
	return fr.conn(tx).WithContext(ctx).
		Where("id = ?", itemID).
		Delete(&types.FileItem{}).Error
}

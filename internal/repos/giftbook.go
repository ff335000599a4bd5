package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type GiftbookRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.Giftbook) (*types.Giftbook, error)
	ExistsByAcquisition(ctx context.Context, tx *gorm.DB, userID int64, acquisitionType string, acquisitionID int64) (bool, error)
	ExistsByAcquisitionOnDay(ctx context.Context, tx *gorm.DB, userID int64, acquisitionType string, acquisitionID int64, day string) (bool, error)
}

type giftbookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGiftbookRepo(db *gorm.DB, baseLog *logger.Logger) GiftbookRepo {
	return &giftbookRepo{db: db, log: baseLog.With("repo", "GiftbookRepo")}
}

func (gr *giftbookRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return gr.db
}

func (gr *giftbookRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.Giftbook) (*types.Giftbook, error) {
	if err := gr.conn(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ExistsByAcquisition is the at-most-once guard per (user, promotion). It
// locks the matched rows so two concurrent first views serialize on the same
// transaction boundary that performs the insert.
func (gr *giftbookRepo) ExistsByAcquisition(ctx context.Context, tx *gorm.DB, userID int64, acquisitionType string, acquisitionID int64) (bool, error) {
	var rows []types.Giftbook
	if err := lockForUpdate(gr.conn(tx).WithContext(ctx)).
		Where("user_id = ? AND acquisition_type = ? AND acquisition_id = ?",
			userID, acquisitionType, acquisitionID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (gr *giftbookRepo) ExistsByAcquisitionOnDay(ctx context.Context, tx *gorm.DB, userID int64, acquisitionType string, acquisitionID int64, day string) (bool, error) {
	var rows []types.Giftbook
	if err := lockForUpdate(gr.conn(tx).WithContext(ctx)).
		Where("user_id = ? AND acquisition_type = ? AND acquisition_id = ? AND received_date = ?",
			userID, acquisitionType, acquisitionID, day).
		Limit(1).
		Find(&rows).Error; err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type TicketbookRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *types.Ticketbook) (*types.Ticketbook, error)
	BestMatch(ctx context.Context, tx *gorm.DB, userID, productID, episodeID int64, now time.Time) (*types.Ticketbook, error)
	OwnExists(ctx context.Context, tx *gorm.DB, userID, productID, episodeID int64) (bool, error)
	CountFreeByProduct(ctx context.Context, tx *gorm.DB, userID, productID int64, now time.Time) (int64, error)
	MarkUsed(ctx context.Context, tx *gorm.DB, ticketID int64) error
}

type ticketbookRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTicketbookRepo(db *gorm.DB, baseLog *logger.Logger) TicketbookRepo {
	return &ticketbookRepo{db: db, log: baseLog.With("repo", "TicketbookRepo")}
}

func (tr *ticketbookRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return tr.db
}

func (tr *ticketbookRepo) Create(ctx context.Context, tx *gorm.DB, ticket *types.Ticketbook) (*types.Ticketbook, error) {
	if err := tr.conn(tx).WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, err
	}
	return ticket, nil
}

// BestMatch picks the tightest-scoped live ticket: episode scope over product
// scope over global, own over rental, and rentals only while unexpired.
func (tr *ticketbookRepo) BestMatch(ctx context.Context, tx *gorm.DB, userID, productID, episodeID int64, now time.Time) (*types.Ticketbook, error) {
	var result types.Ticketbook
	err := tr.conn(tx).WithContext(ctx).
		Where("user_id = ? AND use_yn = ?", userID, types.YnYes).
		Where("(product_id = ? AND episode_id = ?) OR (product_id = ? AND episode_id IS NULL) OR (product_id IS NULL AND episode_id IS NULL)",
			productID, episodeID, productID).
		Where("own_type = ? OR rental_expired_date IS NULL OR rental_expired_date > ?", types.OwnTypeOwn, now).
		Order("CASE WHEN episode_id IS NOT NULL THEN 0 WHEN product_id IS NOT NULL THEN 1 ELSE 2 END").
		Order("CASE WHEN own_type = 'own' THEN 0 ELSE 1 END").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (tr *ticketbookRepo) OwnExists(ctx context.Context, tx *gorm.DB, userID, productID, episodeID int64) (bool, error) {
	var count int64
	if err := tr.conn(tx).WithContext(ctx).
		Model(&types.Ticketbook{}).
		Where("user_id = ? AND own_type = ? AND use_yn = ?", userID, types.OwnTypeOwn, types.YnYes).
		Where("(product_id = ? AND episode_id = ?) OR (product_id = ? AND episode_id IS NULL)",
			productID, episodeID, productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (tr *ticketbookRepo) MarkUsed(ctx context.Context, tx *gorm.DB, ticketID int64) error {
	return tr.conn(tx).WithContext(ctx).
		Model(&types.Ticketbook{}).
		Where("id = ?", ticketID).
		Update("use_yn", types.YnNo).Error
}

// CountFreeByProduct is the viewer's usable promotion-ticket count shown on
// product cards.
func (tr *ticketbookRepo) CountFreeByProduct(ctx context.Context, tx *gorm.DB, userID, productID int64, now time.Time) (int64, error) {
	var count int64
	err := tr.conn(tx).WithContext(ctx).
		Model(&types.Ticketbook{}).
		Where("user_id = ? AND product_id = ? AND use_yn = ?", userID, productID, types.YnYes).
		Where("ticket_type IN ?", []string{
			types.TicketTypeFree,
			types.TicketTypeWaitingForFree,
			types.TicketTypeSixNinePath,
			types.TicketTypeFreeForFirst,
		}).
		Where("rental_expired_date IS NULL OR rental_expired_date > ?", now).
		Count(&count).Error
	return count, err
}

package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// kst is the promotion clock. The 6-9 windows and the once-per-day guard are
// defined in Korea time regardless of where the server runs.
var kst = time.FixedZone("KST", 9*60*60)

const defaultFreeForFirstQuota = 3

// IssuedVoucher reports one giftbook mint back to the caller.
type IssuedVoucher struct {
	TicketType        string     `json:"ticket_type"`
	Count             int        `json:"count"`
	RentalExpiredDate *time.Time `json:"rental_expired_date,omitempty"`
}

// PromotionService runs the three auto-issuance checks on a product view.
// All guards and inserts share one transaction; the guard selects take row
// locks so two concurrent first views cannot both mint.
type PromotionService interface {
	OnView(ctx context.Context, userID, productID int64, now time.Time) ([]IssuedVoucher, error)
	ActiveTypes(ctx context.Context, productID int64, now time.Time) ([]string, error)
}

type promotionService struct {
	log        *logger.Logger
	db         *gorm.DB
	promotions repos.PromotionRepo
	giftbook   repos.GiftbookRepo
	usage      repos.UsageRecordRepo
	counters   CounterService
}

func NewPromotionService(
	log *logger.Logger,
	db *gorm.DB,
	promotions repos.PromotionRepo,
	giftbook repos.GiftbookRepo,
	usage repos.UsageRecordRepo,
	counters CounterService,
) PromotionService {
	return &promotionService{
		log:        log.With("service", "PromotionService"),
		db:         db,
		promotions: promotions,
		giftbook:   giftbook,
		usage:      usage,
		counters:   counters,
	}
}

func (ps *promotionService) ActiveTypes(ctx context.Context, productID int64, now time.Time) ([]string, error) {
	return ps.promotions.ActiveTypesByProduct(ctx, nil, productID, now)
}

// inSixNineWindow reports whether the KST wall clock sits in [06,09) or
// [18,21).
func inSixNineWindow(now time.Time) bool {
	h := now.In(kst).Hour()
	return (h >= 6 && h < 9) || (h >= 18 && h < 21)
}

func kstDay(now time.Time) string {
	return now.In(kst).Format("2006-01-02")
}

func (ps *promotionService) OnView(ctx context.Context, userID, productID int64, now time.Time) ([]IssuedVoucher, error) {
	var issued []IssuedVoucher
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		priorViews, err := ps.usage.CountByUserProduct(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		if priorViews == 0 {
			voucher, err := ps.mintFreeForFirst(ctx, tx, userID, productID, now)
			if err != nil {
				return err
			}
			if voucher != nil {
				issued = append(issued, *voucher)
			}
		}

		voucher, err := ps.mintSixNinePath(ctx, tx, userID, productID, now)
		if err != nil {
			return err
		}
		if voucher != nil {
			issued = append(issued, *voucher)
		}

		voucher, err = ps.mintWaitForFree(ctx, tx, userID, productID, now)
		if err != nil {
			return err
		}
		if voucher != nil {
			issued = append(issued, *voucher)
		}

		if _, err := ps.usage.RecordView(ctx, tx, userID, productID, nil, now); err != nil {
			return err
		}
		return ps.counters.RecomputeProductCounters(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (ps *promotionService) mintFreeForFirst(ctx context.Context, tx *gorm.DB, userID, productID int64, now time.Time) (*IssuedVoucher, error) {
	promo, err := ps.promotions.ActiveDirectByProduct(ctx, tx, productID, now)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, nil
	}
	already, err := ps.giftbook.ExistsByAcquisition(ctx, tx, userID, types.AcquisitionDirectPromotion, promo.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, nil
	}

	quota := promo.NumTicketPerPerson
	if quota <= 0 {
		quota = defaultFreeForFirstQuota
	}
	day := kstDay(now)
	for seq := 0; seq < quota; seq++ {
		if _, err := ps.giftbook.Create(ctx, tx, &types.Giftbook{
			UserID:          userID,
			ProductID:       &productID,
			TicketType:      types.TicketTypeFreeForFirst,
			OwnType:         types.OwnTypeRental,
			AcquisitionType: types.AcquisitionDirectPromotion,
			AcquisitionID:   promo.ID,
			ReceivedDate:    day,
			Seq:             seq,
		}); err != nil {
			return nil, err
		}
	}
	return &IssuedVoucher{TicketType: types.TicketTypeFreeForFirst, Count: quota}, nil
}

func (ps *promotionService) mintSixNinePath(ctx context.Context, tx *gorm.DB, userID, productID int64, now time.Time) (*IssuedVoucher, error) {
	if !inSixNineWindow(now) {
		return nil, nil
	}
	promo, err := ps.promotions.ActiveAppliedByProduct(ctx, tx, productID, types.PromotionSixNinePath, now)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, nil
	}
	day := kstDay(now)
	today, err := ps.giftbook.ExistsByAcquisitionOnDay(ctx, tx, userID, types.AcquisitionAppliedPromotion, promo.ID, day)
	if err != nil {
		return nil, err
	}
	if today {
		return nil, nil
	}

	expires := now.Add(24 * time.Hour)
	if _, err := ps.giftbook.Create(ctx, tx, &types.Giftbook{
		UserID:            userID,
		ProductID:         &productID,
		TicketType:        types.TicketTypeSixNinePath,
		OwnType:           types.OwnTypeRental,
		RentalExpiredDate: &expires,
		AcquisitionType:   types.AcquisitionAppliedPromotion,
		AcquisitionID:     promo.ID,
		ReceivedDate:      day,
	}); err != nil {
		return nil, err
	}
	return &IssuedVoucher{TicketType: types.TicketTypeSixNinePath, Count: 1, RentalExpiredDate: &expires}, nil
}

func (ps *promotionService) mintWaitForFree(ctx context.Context, tx *gorm.DB, userID, productID int64, now time.Time) (*IssuedVoucher, error) {
	promo, err := ps.promotions.ActiveAppliedByProduct(ctx, tx, productID, types.PromotionWaitingForFree, now)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, nil
	}
	already, err := ps.giftbook.ExistsByAcquisition(ctx, tx, userID, types.AcquisitionAppliedPromotion, promo.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, nil
	}

	if _, err := ps.giftbook.Create(ctx, tx, &types.Giftbook{
		UserID:          userID,
		ProductID:       &productID,
		TicketType:      types.TicketTypeWaitingForFree,
		OwnType:         types.OwnTypeRental,
		AcquisitionType: types.AcquisitionAppliedPromotion,
		AcquisitionID:   promo.ID,
		ReceivedDate:    kstDay(now),
	}); err != nil {
		return nil, err
	}
	return &IssuedVoucher{TicketType: types.TicketTypeWaitingForFree, Count: 1}, nil
}

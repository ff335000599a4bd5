package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type promotionFixture struct {
	db  *gorm.DB
	svc PromotionService
}

func newPromotionFixture(t *testing.T) *promotionFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	promotions := repos.NewPromotionRepo(db, log)
	giftbook := repos.NewGiftbookRepo(db, log)
	usage := repos.NewUsageRecordRepo(db, log)
	counters := NewCounterService(log, db)
	return &promotionFixture{
		db:  db,
		svc: NewPromotionService(log, db, promotions, giftbook, usage, counters),
	}
}

func (f *promotionFixture) seedProduct(t *testing.T) *types.Product {
	t.Helper()
	product := &types.Product{Title: "소설", PriceType: types.PriceTypePaid, OpenYn: types.YnYes, UseYn: types.YnYes, RatingsCode: types.RatingsAll}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// Outside the 6-9 window so only the promotion under test can mint.
var quietHour = time.Date(2026, 8, 28, 12, 0, 0, 0, kst)

func giftbookCount(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&types.Giftbook{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count giftbook: %v", err)
	}
	return count
}

func TestOnView_FreeForFirstMintsDefaultQuotaOnce(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)
	if err := f.db.Create(&types.DirectPromotion{
		ProductID:     product.ID,
		PromotionType: types.PromotionFreeForFirst,
		StatusCode:    types.PromotionStatusIng,
	}).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	const userID = int64(5)

	issued, err := f.svc.OnView(context.Background(), userID, product.ID, quietHour)
	if err != nil {
		t.Fatalf("OnView: %v", err)
	}
	if len(issued) != 1 || issued[0].TicketType != types.TicketTypeFreeForFirst || issued[0].Count != 3 {
		t.Fatalf("unexpected vouchers: %+v", issued)
	}
	if got := giftbookCount(t, f.db, userID); got != 3 {
		t.Fatalf("giftbook rows = %d, want 3", got)
	}

	// Second view: no longer a first view, nothing minted.
	issued, err = f.svc.OnView(context.Background(), userID, product.ID, quietHour.Add(time.Minute))
	if err != nil {
		t.Fatalf("second OnView: %v", err)
	}
	if len(issued) != 0 {
		t.Fatalf("second view minted: %+v", issued)
	}
	if got := giftbookCount(t, f.db, userID); got != 3 {
		t.Fatalf("giftbook rows after second view = %d", got)
	}
}

func TestOnView_FreeForFirstHonorsPromotionQuota(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)
	if err := f.db.Create(&types.DirectPromotion{
		ProductID:          product.ID,
		PromotionType:      types.PromotionFreeForFirst,
		StatusCode:         types.PromotionStatusIng,
		NumTicketPerPerson: 5,
	}).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}

	issued, err := f.svc.OnView(context.Background(), 5, product.ID, quietHour)
	if err != nil {
		t.Fatalf("OnView: %v", err)
	}
	if len(issued) != 1 || issued[0].Count != 5 {
		t.Fatalf("unexpected vouchers: %+v", issued)
	}
}

func TestOnView_SixNinePathWindowBoundaries(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)
	if err := f.db.Create(&types.AppliedPromotion{
		ProductID:     product.ID,
		PromotionType: types.PromotionSixNinePath,
		StatusCode:    types.PromotionStatusIng,
	}).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}

	// 08:59:59 KST sits inside [06,09).
	inside := time.Date(2026, 8, 28, 8, 59, 59, 0, kst)
	issued, err := f.svc.OnView(context.Background(), 11, product.ID, inside)
	if err != nil {
		t.Fatalf("OnView inside window: %v", err)
	}
	if len(issued) != 1 || issued[0].TicketType != types.TicketTypeSixNinePath {
		t.Fatalf("unexpected vouchers inside window: %+v", issued)
	}
	if issued[0].RentalExpiredDate == nil || !issued[0].RentalExpiredDate.Equal(inside.Add(24*time.Hour)) {
		t.Fatalf("unexpected expiry: %v", issued[0].RentalExpiredDate)
	}

	// 09:00:01 KST is outside, and a different user keeps the guard clean.
	outside := time.Date(2026, 8, 28, 9, 0, 1, 0, kst)
	issued, err = f.svc.OnView(context.Background(), 12, product.ID, outside)
	if err != nil {
		t.Fatalf("OnView outside window: %v", err)
	}
	for _, v := range issued {
		if v.TicketType == types.TicketTypeSixNinePath {
			t.Fatalf("minted outside window: %+v", v)
		}
	}

	// Evening window 18:00 mints again for the first user on a new day.
	nextEvening := time.Date(2026, 8, 29, 18, 0, 0, 0, kst)
	issued, err = f.svc.OnView(context.Background(), 11, product.ID, nextEvening)
	if err != nil {
		t.Fatalf("OnView evening: %v", err)
	}
	if len(issued) != 1 || issued[0].TicketType != types.TicketTypeSixNinePath {
		t.Fatalf("expected evening mint, got: %+v", issued)
	}
}

func TestOnView_SixNinePathOncePerDay(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)
	if err := f.db.Create(&types.AppliedPromotion{
		ProductID:     product.ID,
		PromotionType: types.PromotionSixNinePath,
		StatusCode:    types.PromotionStatusIng,
	}).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	const userID = int64(21)

	morning := time.Date(2026, 8, 28, 6, 30, 0, 0, kst)
	issued, err := f.svc.OnView(context.Background(), userID, product.ID, morning)
	if err != nil {
		t.Fatalf("OnView morning: %v", err)
	}
	if len(issued) != 1 {
		t.Fatalf("morning mint: %+v", issued)
	}

	// Evening of the same KST day stays dry.
	evening := time.Date(2026, 8, 28, 19, 0, 0, 0, kst)
	issued, err = f.svc.OnView(context.Background(), userID, product.ID, evening)
	if err != nil {
		t.Fatalf("OnView evening: %v", err)
	}
	if len(issued) != 0 {
		t.Fatalf("same-day second mint: %+v", issued)
	}
}

func TestOnView_WaitForFreeMintsOnceEver(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)
	if err := f.db.Create(&types.AppliedPromotion{
		ProductID:     product.ID,
		PromotionType: types.PromotionWaitingForFree,
		StatusCode:    types.PromotionStatusIng,
	}).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	const userID = int64(31)

	// First view also triggers free-for-first checks; none is configured, so
	// only the wait-for-free voucher appears.
	issued, err := f.svc.OnView(context.Background(), userID, product.ID, quietHour)
	if err != nil {
		t.Fatalf("OnView: %v", err)
	}
	if len(issued) != 1 || issued[0].TicketType != types.TicketTypeWaitingForFree {
		t.Fatalf("unexpected vouchers: %+v", issued)
	}

	issued, err = f.svc.OnView(context.Background(), userID, product.ID, quietHour.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("second OnView: %v", err)
	}
	if len(issued) != 0 {
		t.Fatalf("wait-for-free minted twice: %+v", issued)
	}
}

func TestOnView_RecordsViewAndBumpsHitCounter(t *testing.T) {
	f := newPromotionFixture(t)
	product := f.seedProduct(t)

	if _, err := f.svc.OnView(context.Background(), 41, product.ID, quietHour); err != nil {
		t.Fatalf("OnView: %v", err)
	}
	var reloaded types.Product
	if err := f.db.First(&reloaded, product.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CountHit != 1 {
		t.Fatalf("count_hit = %d, want 1", reloaded.CountHit)
	}
	var usage int64
	if err := f.db.Model(&types.UsageRecord{}).Where("user_id = ? AND product_id = ?", 41, product.ID).Count(&usage).Error; err != nil {
		t.Fatalf("count usage: %v", err)
	}
	if usage != 1 {
		t.Fatalf("usage rows = %d, want 1", usage)
	}
}

package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type entitlementFixture struct {
	db      *gorm.DB
	svc     EntitlementService
	tickets repos.TicketbookRepo
	cash    repos.UserCashRepo
}

func newEntitlementFixture(t *testing.T) *entitlementFixture {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	episodes := repos.NewEpisodeRepo(db, log)
	products := repos.NewProductRepo(db, log)
	tickets := repos.NewTicketbookRepo(db, log)
	cash := repos.NewUserCashRepo(db, log)
	usage := repos.NewUsageRecordRepo(db, log)
	counters := NewCounterService(log, db)
	return &entitlementFixture{
		db:      db,
		svc:     NewEntitlementService(log, db, episodes, products, tickets, cash, usage, counters),
		tickets: tickets,
		cash:    cash,
	}
}

func (f *entitlementFixture) seedEpisode(t *testing.T, priceType string) *types.Episode {
	t.Helper()
	product := &types.Product{Title: "소설", PriceType: priceType, OpenYn: types.YnYes, UseYn: types.YnYes, RatingsCode: types.RatingsAll}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	episode := &types.Episode{
		ProductID: product.ID,
		EpisodeNo: 1,
		Title:     "1화",
		PriceType: priceType,
		OpenYn:    types.YnYes,
		UseYn:     types.YnYes,
	}
	if err := f.db.Create(episode).Error; err != nil {
		t.Fatalf("seed episode: %v", err)
	}
	return episode
}

func (f *entitlementFixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	ctx := context.Background()
	if err := f.cash.Ensure(ctx, nil, userID); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if err := f.cash.Credit(ctx, nil, userID, amount, time.Now()); err != nil {
		t.Fatalf("credit wallet: %v", err)
	}
}

func TestResolve_FreeEpisodeReadableForEveryone(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypeFree)
	now := time.Now()

	for _, userID := range []int64{0, 42} {
		ent, err := f.svc.Resolve(context.Background(), userID, episode.ID, now)
		if err != nil {
			t.Fatalf("Resolve(user=%d): %v", userID, err)
		}
		if ent.Access != AccessReadable {
			t.Fatalf("access = %q, want readable", ent.Access)
		}
	}
}

func TestResolve_PaidEpisodeGuestLockedUserMustPurchase(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypePaid)
	now := time.Now()

	ent, err := f.svc.Resolve(context.Background(), 0, episode.ID, now)
	if err != nil {
		t.Fatalf("Resolve guest: %v", err)
	}
	if ent.Access != AccessLocked {
		t.Fatalf("guest access = %q, want locked", ent.Access)
	}

	ent, err = f.svc.Resolve(context.Background(), 42, episode.ID, now)
	if err != nil {
		t.Fatalf("Resolve user: %v", err)
	}
	if ent.Access != AccessMustPurchase {
		t.Fatalf("user access = %q, want must_purchase", ent.Access)
	}
}

func TestResolve_MissingAndDeletedEpisode(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypeFree)
	now := time.Now()

	_, err := f.svc.Resolve(context.Background(), 1, episode.ID+100, now)
	wantCode(t, err, apierr.CodeNotFoundEpisode)

	if err := f.db.Model(&types.Episode{}).Where("id = ?", episode.ID).Update("use_yn", types.YnNo).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	_, err = f.svc.Resolve(context.Background(), 1, episode.ID, now)
	wantCode(t, err, apierr.CodeDeletedEpisode)
}

func TestPurchaseWithCash_FullFlow(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypePaid)
	now := time.Now()
	const userID = int64(7)

	// Broke wallet first.
	err := f.svc.PurchaseWithCash(context.Background(), userID, episode.ID, now)
	wantCode(t, err, apierr.CodeInsufficientCash)

	f.fund(t, userID, 150)
	if err := f.svc.PurchaseWithCash(context.Background(), userID, episode.ID, now); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	wallet, err := f.cash.GetForUpdate(context.Background(), nil, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.Balance != 50 {
		t.Fatalf("balance = %d, want 50", wallet.Balance)
	}

	ent, err := f.svc.Resolve(context.Background(), userID, episode.ID, now)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ent.Access != AccessReadable || ent.OwnType != types.OwnTypeOwn {
		t.Fatalf("post-purchase entitlement = %+v", ent)
	}

	err = f.svc.PurchaseWithCash(context.Background(), userID, episode.ID, now)
	wantCodeStatus(t, err, apierr.CodeAlreadyOwned, http.StatusBadRequest)
}

func TestPurchaseWithCash_FreeEpisodeRejected(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypeFree)
	f.fund(t, 7, 1000)

	err := f.svc.PurchaseWithCash(context.Background(), 7, episode.ID, time.Now())
	wantCode(t, err, apierr.CodeFreeEpisodeCannotPurchase)
}

func TestConsumeTicket_PinsBroadTicketToEpisode(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypePaid)
	now := time.Now()
	const userID = int64(9)

	_, err := f.svc.ConsumeTicket(context.Background(), userID, episode.ID, now)
	wantCode(t, err, apierr.CodeNoUsableTicket)

	expires := now.Add(24 * time.Hour)
	broad, err := f.tickets.Create(context.Background(), nil, &types.Ticketbook{
		UserID:            userID,
		ProductID:         &episode.ProductID,
		TicketType:        types.TicketTypeWaitingForFree,
		OwnType:           types.OwnTypeRental,
		RentalExpiredDate: &expires,
		UseYn:             types.YnYes,
	})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	pinned, err := f.svc.ConsumeTicket(context.Background(), userID, episode.ID, now)
	if err != nil {
		t.Fatalf("ConsumeTicket: %v", err)
	}
	if pinned.EpisodeID == nil || *pinned.EpisodeID != episode.ID {
		t.Fatalf("pinned ticket not episode scoped: %+v", pinned)
	}
	if pinned.TicketType != broad.TicketType || pinned.OwnType != broad.OwnType {
		t.Fatalf("pinned ticket changed terms: %+v", pinned)
	}

	var source types.Ticketbook
	if err := f.db.First(&source, broad.ID).Error; err != nil {
		t.Fatalf("reload source ticket: %v", err)
	}
	if source.UseYn != types.YnNo {
		t.Fatalf("source ticket not spent: use_yn = %q", source.UseYn)
	}

	// A second consume returns the pinned row untouched.
	again, err := f.svc.ConsumeTicket(context.Background(), userID, episode.ID, now)
	if err != nil {
		t.Fatalf("second ConsumeTicket: %v", err)
	}
	if again.ID != pinned.ID {
		t.Fatalf("second consume minted a new row: %d vs %d", again.ID, pinned.ID)
	}
}

func TestLikeUnlike_RoundTripRecomputesCounters(t *testing.T) {
	f := newEntitlementFixture(t)
	episode := f.seedEpisode(t, types.PriceTypeFree)
	now := time.Now()
	const userID = int64(3)

	err := f.svc.Unlike(context.Background(), userID, episode.ID, now)
	wantCode(t, err, apierr.CodeNotLikedYet)

	if err := f.svc.Like(context.Background(), userID, episode.ID, now); err != nil {
		t.Fatalf("Like: %v", err)
	}
	var reloaded types.Episode
	if err := f.db.First(&reloaded, episode.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CountRecommend != 1 || reloaded.CountHit != 1 {
		t.Fatalf("counters after like: hit=%d recommend=%d", reloaded.CountHit, reloaded.CountRecommend)
	}

	err = f.svc.Like(context.Background(), userID, episode.ID, now)
	wantCode(t, err, apierr.CodeAlreadyLiked)

	if err := f.svc.Unlike(context.Background(), userID, episode.ID, now); err != nil {
		t.Fatalf("Unlike: %v", err)
	}
	if err := f.db.First(&reloaded, episode.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CountRecommend != 0 {
		t.Fatalf("recommend count after unlike = %d", reloaded.CountRecommend)
	}
}

package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

const episodePriceCash = 100

// Access decisions for a (user, episode) pair.
const (
	AccessReadable     = "readable"
	AccessMustPurchase = "must_purchase"
	AccessLocked       = "locked"
)

// Entitlement is the answer to "may this user read this episode now?".
// RemainingSeconds is set only for rentals with an expiry.
type Entitlement struct {
	Access           string `json:"access"`
	OwnType          string `json:"own_type,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

type EntitlementService interface {
	Resolve(ctx context.Context, userID, episodeID int64, now time.Time) (*Entitlement, error)
	PurchaseWithCash(ctx context.Context, userID, episodeID int64, now time.Time) error
	ConsumeTicket(ctx context.Context, userID, episodeID int64, now time.Time) (*types.Ticketbook, error)
	Like(ctx context.Context, userID, episodeID int64, now time.Time) error
	Unlike(ctx context.Context, userID, episodeID int64, now time.Time) error
}

type entitlementService struct {
	log      *logger.Logger
	db       *gorm.DB
	episodes repos.EpisodeRepo
	products repos.ProductRepo
	tickets  repos.TicketbookRepo
	cash     repos.UserCashRepo
	usage    repos.UsageRecordRepo
	counters CounterService
}

func NewEntitlementService(
	log *logger.Logger,
	db *gorm.DB,
	episodes repos.EpisodeRepo,
	products repos.ProductRepo,
	tickets repos.TicketbookRepo,
	cash repos.UserCashRepo,
	usage repos.UsageRecordRepo,
	counters CounterService,
) EntitlementService {
	return &entitlementService{
		log:      log.With("service", "EntitlementService"),
		db:       db,
		episodes: episodes,
		products: products,
		tickets:  tickets,
		cash:     cash,
		usage:    usage,
		counters: counters,
	}
}

func (es *entitlementService) liveEpisode(ctx context.Context, tx *gorm.DB, episodeID int64) (*types.Episode, error) {
	episode, err := es.episodes.GetByID(ctx, tx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, apierr.NotFound(apierr.CodeNotFoundEpisode)
	}
	if episode.UseYn == types.YnNo {
		return nil, apierr.NotFound(apierr.CodeDeletedEpisode)
	}
	return episode, nil
}

func (es *entitlementService) Resolve(ctx context.Context, userID, episodeID int64, now time.Time) (*Entitlement, error) {
	episode, err := es.liveEpisode(ctx, nil, episodeID)
	if err != nil {
		return nil, err
	}

	if userID > 0 {
		ticket, err := es.tickets.BestMatch(ctx, nil, userID, episode.ProductID, episode.ID, now)
		if err != nil {
			return nil, err
		}
		if ticket != nil {
			out := &Entitlement{Access: AccessReadable, OwnType: ticket.OwnType}
			if ticket.OwnType == types.OwnTypeRental && ticket.RentalExpiredDate != nil {
				out.RemainingSeconds = int64(ticket.RentalExpiredDate.Sub(now) / time.Second)
			}
			return out, nil
		}
	}

	if episode.PriceType == types.PriceTypeFree {
		return &Entitlement{Access: AccessReadable}, nil
	}
	if userID <= 0 {
		return &Entitlement{Access: AccessLocked}, nil
	}
	return &Entitlement{Access: AccessMustPurchase}, nil
}

func (es *entitlementService) PurchaseWithCash(ctx context.Context, userID, episodeID int64, now time.Time) error {
	return es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		episode, err := es.liveEpisode(ctx, tx, episodeID)
		if err != nil {
			return err
		}
		if episode.PriceType == types.PriceTypeFree {
			return apierr.BadRequest(apierr.CodeFreeEpisodeCannotPurchase)
		}
		owned, err := es.tickets.OwnExists(ctx, tx, userID, episode.ProductID, episode.ID)
		if err != nil {
			return err
		}
		if owned {
			return apierr.BadRequest(apierr.CodeAlreadyOwned)
		}
		if err := es.cash.Ensure(ctx, tx, userID); err != nil {
			return err
		}
		if err := es.cash.Debit(ctx, tx, userID, episodePriceCash, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.BadRequest(apierr.CodeInsufficientCash)
			}
			return err
		}
		_, err = es.tickets.Create(ctx, tx, &types.Ticketbook{
			UserID:    userID,
			ProductID: &episode.ProductID,
			EpisodeID: &episode.ID,
			TicketType: types.TicketTypePaid,
			OwnType:    types.OwnTypeOwn,
			UseYn:      types.YnYes,
		})
		return err
	})
}

// ConsumeTicket pins a broad-scoped ticket onto a concrete episode: the
// source row is spent and an episode-scoped row with the same terms replaces
// it. An already episode-scoped match is returned as is.
func (es *entitlementService) ConsumeTicket(ctx context.Context, userID, episodeID int64, now time.Time) (*types.Ticketbook, error) {
	var consumed *types.Ticketbook
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		episode, err := es.liveEpisode(ctx, tx, episodeID)
		if err != nil {
			return err
		}
		ticket, err := es.tickets.BestMatch(ctx, tx, userID, episode.ProductID, episode.ID, now)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apierr.BadRequest(apierr.CodeNoUsableTicket)
		}
		if ticket.EpisodeID != nil {
			consumed = ticket
			return nil
		}
		if err := es.tickets.MarkUsed(ctx, tx, ticket.ID); err != nil {
			return err
		}
		consumed, err = es.tickets.Create(ctx, tx, &types.Ticketbook{
			UserID:            userID,
			ProductID:         &episode.ProductID,
			EpisodeID:         &episode.ID,
			TicketType:        ticket.TicketType,
			OwnType:           ticket.OwnType,
			RentalExpiredDate: ticket.RentalExpiredDate,
			UseYn:             types.YnYes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (es *entitlementService) Like(ctx context.Context, userID, episodeID int64, now time.Time) error {
	return es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		episode, err := es.liveEpisode(ctx, tx, episodeID)
		if err != nil {
			return err
		}
		record, err := es.usage.GetByUserEpisode(ctx, tx, userID, episode.ID)
		if err != nil {
			return err
		}
		if record != nil && record.RecommendYn == types.YnYes {
			return apierr.Conflict(apierr.CodeAlreadyLiked)
		}
		if record == nil {
			record, err = es.usage.RecordView(ctx, tx, userID, episode.ProductID, &episode.ID, now)
			if err != nil {
				return err
			}
		}
		if err := es.usage.SetRecommend(ctx, tx, record.ID, types.YnYes, now); err != nil {
			return err
		}
		return es.recomputeBoth(ctx, tx, episode)
	})
}

func (es *entitlementService) Unlike(ctx context.Context, userID, episodeID int64, now time.Time) error {
	return es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		episode, err := es.liveEpisode(ctx, tx, episodeID)
		if err != nil {
			return err
		}
		record, err := es.usage.GetByUserEpisode(ctx, tx, userID, episode.ID)
		if err != nil {
			return err
		}
		if record == nil || record.RecommendYn != types.YnYes {
			return apierr.BadRequest(apierr.CodeNotLikedYet)
		}
		if err := es.usage.SetRecommend(ctx, tx, record.ID, types.YnNo, now); err != nil {
			return err
		}
		return es.recomputeBoth(ctx, tx, episode)
	})
}

func (es *entitlementService) recomputeBoth(ctx context.Context, tx *gorm.DB, episode *types.Episode) error {
	if err := es.counters.RecomputeEpisodeCounters(ctx, tx, episode.ID); err != nil {
		return err
	}
	return es.counters.RecomputeProductCounters(ctx, tx, episode.ProductID)
}

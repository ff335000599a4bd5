package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

// NotificationService writes the per-user notification log. The episode
// fan-out is best effort: callers flip open_yn first and never roll it back
// on a notification failure.
type NotificationService interface {
	NotifyEpisodeOpen(ctx context.Context, product *types.Product, episode *types.Episode) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*types.UserNotification, error)
}

type notificationService struct {
	log           *logger.Logger
	db            *gorm.DB
	bookmarks     repos.BookmarkRepo
	profiles      repos.ProfileRepo
	notifications repos.UserNotificationRepo
}

func NewNotificationService(
	log *logger.Logger,
	db *gorm.DB,
	bookmarks repos.BookmarkRepo,
	profiles repos.ProfileRepo,
	notifications repos.UserNotificationRepo,
) NotificationService {
	return &notificationService{
		log:           log.With("service", "NotificationService"),
		db:            db,
		bookmarks:     bookmarks,
		profiles:      profiles,
		notifications: notifications,
	}
}

func (ns *notificationService) ListByUser(ctx context.Context, userID int64, limit int) ([]*types.UserNotification, error) {
	return ns.notifications.ListByUser(ctx, nil, userID, limit)
}

// NotifyEpisodeOpen fans out one log row per bookmarker whose benefit pref
// allows it. A missing pref row counts as allowed.
func (ns *notificationService) NotifyEpisodeOpen(ctx context.Context, product *types.Product, episode *types.Episode) error {
	userIDs, err := ns.bookmarks.UserIDsByProduct(ctx, nil, product.ID)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	var mu sync.Mutex
	var recipients []int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, userID := range userIDs {
		g.Go(func() error {
			pref, err := ns.profiles.GetPref(gctx, nil, userID, types.NotifPrefBenefit)
			if err != nil {
				return err
			}
			if pref != nil && pref.AllowYn == types.YnNo {
				return nil
			}
			mu.Lock()
			recipients = append(recipients, userID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	title := fmt.Sprintf("[%s]에 새로운 회차가 업데이트", product.Title)
	content := chapterHeading(episode.EpisodeNo, episode.Title)
	rows := make([]*types.UserNotification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, &types.UserNotification{
			UserID:  userID,
			Title:   title,
			Content: content,
			ReadYn:  types.YnNo,
		})
	}
	if err := ns.notifications.CreateBatch(ctx, nil, rows); err != nil {
		return err
	}
	ns.log.Info("episode update fan-out complete", "productID", product.ID, "episodeID", episode.ID, "recipients", len(rows))
	return nil
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

const (
	maxContentTextChars  = 20000
	maxAuthorCommentLen  = 2000
	duplicateTitleWindow = 10 * time.Second
	pendingFileMaxAge    = time.Hour
	epubContentType      = "application/epub+zip"
)

// SaveEpisodeInput is the create/update contract. EpisodeID present means
// update. Draft (SaveYn=Y) forces the episode closed whatever OpenYn says.
type SaveEpisodeInput struct {
	ProductID          int64
	EpisodeID          *int64
	SaveYn             string
	Title              string
	Content            string
	AuthorComment      string
	PriceType          string
	OpenYn             string
	CommentOpenYn      string
	EvaluationOpenYn   string
	PublishReserveYn   string
	PublishReserveDate *time.Time
}

type EpisodeService interface {
	SaveEpisode(ctx context.Context, input SaveEpisodeInput, now time.Time) (*types.Episode, error)
	ToggleOpen(ctx context.Context, episodeID int64, openYn string, now time.Time) (*types.Episode, error)
	DeleteEpisode(ctx context.Context, episodeID int64) error
	RunReservedPublish(ctx context.Context, now time.Time) (int, error)
	SweepPendingFiles(ctx context.Context, now time.Time) (int, error)
}

type episodeService struct {
	log           *logger.Logger
	db            *gorm.DB
	episodes      repos.EpisodeRepo
	products      repos.ProductRepo
	files         repos.FileRepo
	bucket        BucketService
	notifications NotificationService
	uploadClient  *http.Client
}

func NewEpisodeService(
	log *logger.Logger,
	db *gorm.DB,
	episodes repos.EpisodeRepo,
	products repos.ProductRepo,
	files repos.FileRepo,
	bucket BucketService,
	notifications NotificationService,
) EpisodeService {
	return &episodeService{
		log:           log.With("service", "EpisodeService"),
		db:            db,
		episodes:      episodes,
		products:      products,
		files:         files,
		bucket:        bucket,
		notifications: notifications,
		uploadClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (es *episodeService) SaveEpisode(ctx context.Context, input SaveEpisodeInput, now time.Time) (*types.Episode, error) {
	product, err := es.products.GetByID(ctx, nil, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apierr.NotFound(apierr.CodeNotFoundProduct)
	}
	if err := validateEpisodeInput(product, input); err != nil {
		return nil, err
	}

	openYn := input.OpenYn
	if input.SaveYn == types.YnYes {
		openYn = types.YnNo
	}

	var episode *types.Episode
	wasOpen := false
	err = es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.EpisodeID == nil {
			dup, err := es.episodes.RecentWithTitle(ctx, tx, product.ID, input.Title, now.Add(-duplicateTitleWindow))
			if err != nil {
				return err
			}
			if dup {
				return apierr.TooManyRequests(apierr.CodeDuplicateEpisodeCreation)
			}
			episodeNo, err := es.episodes.NextEpisodeNo(ctx, tx, product.ID)
			if err != nil {
				return err
			}
			episode, err = es.episodes.Create(ctx, tx, &types.Episode{
				ProductID:          product.ID,
				EpisodeNo:          episodeNo,
				Title:              input.Title,
				Content:            input.Content,
				AuthorComment:      input.AuthorComment,
				PriceType:          input.PriceType,
				OpenYn:             openYn,
				CommentOpenYn:      defaultYn(input.CommentOpenYn, types.YnYes),
				EvaluationOpenYn:   defaultYn(input.EvaluationOpenYn, types.YnYes),
				PublishReserveYn:   defaultYn(input.PublishReserveYn, types.YnNo),
				PublishReserveDate: input.PublishReserveDate,
				UseYn:              types.YnYes,
			})
			if err != nil {
				return err
			}
			return es.assembleEpub(ctx, tx, product, episode)
		}

		existing, err := es.episodes.GetByID(ctx, tx, *input.EpisodeID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apierr.NotFound(apierr.CodeNotFoundEpisode)
		}
		if existing.UseYn == types.YnNo {
			return apierr.NotFound(apierr.CodeDeletedEpisode)
		}
		if existing.ProductID != product.ID {
			return apierr.Unprocessable(apierr.CodeInvalidEpisodeInfo)
		}
		wasOpen = existing.OpenYn == types.YnYes
		existing.Title = input.Title
		existing.Content = input.Content
		existing.AuthorComment = input.AuthorComment
		existing.PriceType = input.PriceType
		existing.OpenYn = openYn
		existing.CommentOpenYn = defaultYn(input.CommentOpenYn, existing.CommentOpenYn)
		existing.EvaluationOpenYn = defaultYn(input.EvaluationOpenYn, existing.EvaluationOpenYn)
		existing.PublishReserveYn = defaultYn(input.PublishReserveYn, existing.PublishReserveYn)
		existing.PublishReserveDate = input.PublishReserveDate
		if err := es.episodes.Save(ctx, tx, existing); err != nil {
			return err
		}
		episode = existing
		return es.assembleEpub(ctx, tx, product, episode)
	})
	if err != nil {
		return nil, err
	}

	if episode.OpenYn == types.YnYes && !wasOpen && episode.PublishReserveYn != types.YnYes {
		es.publishSideEffects(ctx, product, episode, now)
	}
	return episode, nil
}

func validateEpisodeInput(product *types.Product, input SaveEpisodeInput) error {
	if input.Title == "" {
		return apierr.Unprocessable(apierr.CodeInvalidEpisodeInfo)
	}
	if input.PriceType == types.PriceTypePaid && product.PriceType != types.PriceTypePaid {
		return apierr.BadRequest(apierr.CodeFreeProductCannotCreatePaidEp)
	}
	if utf8.RuneCountInString(StripHTMLText(input.Content)) > maxContentTextChars {
		return apierr.Unprocessable(apierr.CodeInvalidEpisodeInfo)
	}
	if utf8.RuneCountInString(input.AuthorComment) > maxAuthorCommentLen {
		return apierr.Unprocessable(apierr.CodeInvalidEpisodeInfo)
	}
	return nil
}

func defaultYn(value, fallback string) string {
	if value == types.YnYes || value == types.YnNo {
		return value
	}
	return fallback
}

// assembleEpub runs inside the caller's authoring transaction: build the
// artifact, ensure the file bookkeeping (probed key, pending item), push
// through a signed PUT and flip the item ready. A failed upload rolls the
// whole save back, so an open episode always has a ready blob. Updates reuse
// the existing key so the PUT overwrites in place.
func (es *episodeService) assembleEpub(ctx context.Context, tx *gorm.DB, product *types.Product, episode *types.Episode) error {
	coverURL := es.coverURL(ctx, tx, product)
	artifact, err := BuildEpub(EpubInput{
		ProductTitle: product.Title,
		AuthorName:   product.AuthorName,
		EpisodeNo:    episode.EpisodeNo,
		EpisodeTitle: episode.Title,
		ContentHTML:  episode.Content,
		CoverURL:     coverURL,
	})
	if err != nil {
		return fmt.Errorf("epub assembly: %w", err)
	}

	var item *types.FileItem
	if episode.EpubFileID == nil {
		key, err := es.probeEpubKey(ctx, tx)
		if err != nil {
			return err
		}
		group, created, err := es.files.CreateGroupWithItem(ctx, tx, types.FileGroupEpub, key, es.bucket.PublicURL(types.FileGroupEpub, key))
		if err != nil {
			return err
		}
		episode.EpubFileID = &group.ID
		item = created
		if err := es.episodes.Save(ctx, tx, episode); err != nil {
			return err
		}
	} else {
		item, err = es.files.GetItemByGroupID(ctx, tx, *episode.EpubFileID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("episode %d points at file group %d with no item", episode.ID, *episode.EpubFileID)
		}
	}

	putURL, err := es.bucket.SignedPutURL(ctx, types.FileGroupEpub, item.BucketKey, epubContentType)
	if err != nil {
		return err
	}
	if err := es.uploadSigned(ctx, putURL, artifact); err != nil {
		return err
	}
	return es.files.SetItemStatus(ctx, tx, item.ID, types.FileStatusReady)
}

func (es *episodeService) coverURL(ctx context.Context, tx *gorm.DB, product *types.Product) string {
	if product.ThumbnailFileGroupID == nil {
		return ""
	}
	item, err := es.files.GetItemByGroupID(ctx, tx, *product.ThumbnailFileGroupID)
	if err != nil || item == nil {
		return ""
	}
	return item.CdnPath
}

func (es *episodeService) probeEpubKey(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < utils.ProbeLimit; i++ {
		key := utils.RandomName("epub") + ".epub"
		exists, err := es.files.BucketKeyExists(ctx, tx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
	return "", fmt.Errorf("epub key probing exhausted")
}

func (es *episodeService) uploadSigned(ctx context.Context, putURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", epubContentType)
	resp, err := es.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("epub upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("epub upload failed (%d)", resp.StatusCode)
	}
	return nil
}

// publishSideEffects runs after an N→Y flip commits. The notification fan-out
// never unwinds the flip.
func (es *episodeService) publishSideEffects(ctx context.Context, product *types.Product, episode *types.Episode, now time.Time) {
	if err := es.products.SetLastEpisodeDateIfNull(ctx, nil, product.ID, now); err != nil {
		es.log.Error("last_episode_date update failed", "productID", product.ID, "error", err)
	}
	if err := es.notifications.NotifyEpisodeOpen(ctx, product, episode); err != nil {
		es.log.Error("episode update fan-out failed", "productID", product.ID, "episodeID", episode.ID, "error", err)
	}
}

// ToggleOpen flips open_yn manually and stamps open_changed_date so the
// reserved-publish batch knows a human overrode the schedule.
func (es *episodeService) ToggleOpen(ctx context.Context, episodeID int64, openYn string, now time.Time) (*types.Episode, error) {
	if openYn != types.YnYes && openYn != types.YnNo {
		return nil, apierr.Unprocessable(apierr.CodeInvalidEpisodeInfo)
	}
	var episode *types.Episode
	var product *types.Product
	opened := false
	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		episode, err = es.episodes.GetByID(ctx, tx, episodeID)
		if err != nil {
			return err
		}
		if episode == nil {
			return apierr.NotFound(apierr.CodeNotFoundEpisode)
		}
		if episode.UseYn == types.YnNo {
			return apierr.NotFound(apierr.CodeDeletedEpisode)
		}
		opened = episode.OpenYn == types.YnNo && openYn == types.YnYes
		episode.OpenYn = openYn
		episode.OpenChangedDate = &now
		if err := es.episodes.Save(ctx, tx, episode); err != nil {
			return err
		}
		product, err = es.products.GetByID(ctx, tx, episode.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if opened && product != nil {
		es.publishSideEffects(ctx, product, episode, now)
	}
	return episode, nil
}

func (es *episodeService) DeleteEpisode(ctx context.Context, episodeID int64) error {
	episode, err := es.episodes.GetByID(ctx, nil, episodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return apierr.NotFound(apierr.CodeNotFoundEpisode)
	}
	if episode.UseYn == types.YnNo {
		return apierr.NotFound(apierr.CodeDeletedEpisode)
	}
	return es.episodes.SoftDelete(ctx, nil, episodeID)
}

// RunReservedPublish opens every due reservation. Manual flips after the
// reservation are skipped by the due query itself.
func (es *episodeService) RunReservedPublish(ctx context.Context, now time.Time) (int, error) {
	due, err := es.episodes.ListReservedDue(ctx, nil, now)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, episode := range due {
		var product *types.Product
		err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			episode.OpenYn = types.YnYes
			if err := es.episodes.Save(ctx, tx, episode); err != nil {
				return err
			}
			var err error
			product, err = es.products.GetByID(ctx, tx, episode.ProductID)
			return err
		})
		if err != nil {
			es.log.Error("reserved publish failed", "episodeID", episode.ID, "error", err)
			continue
		}
		published++
		if product != nil {
			es.publishSideEffects(ctx, product, episode, now)
		}
	}
	return published, nil
}

// SweepPendingFiles garbage-collects uploads that never completed: pending
// items older than an hour with no episode pointing at their group.
func (es *episodeService) SweepPendingFiles(ctx context.Context, now time.Time) (int, error) {
	stale, err := es.files.ListStalePending(ctx, nil, now.Add(-pendingFileMaxAge))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range stale {
		referenced, err := es.episodes.ExistsByEpubFileID(ctx, nil, item.FileGroupID)
		if err != nil {
			return removed, err
		}
		if referenced {
			continue
		}
		if err := es.bucket.Delete(ctx, types.FileGroupEpub, item.BucketKey); err != nil {
			es.log.Warn("stale blob delete failed", "bucketKey", item.BucketKey, "error", err)
		}
		if err := es.files.DeleteItem(ctx, nil, item.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

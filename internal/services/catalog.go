package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/likenovel/likenovel-backend/internal/apierr"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

const (
	newBadgeWindow = 14 * 24 * time.Hour
	upBadgeWindow  = 24 * time.Hour
	weeklyWindow   = 7 * 24 * time.Hour
)

// ProductCard is the wide read projection every surface renders: home
// sections, listings, detail, author's other works and the interest screens
// all share this one shape. Personalization fields are zeroed for guests but
// the shape never changes.
type ProductCard struct {
	ProductID        int64      `json:"product_id"`
	Title            string     `json:"title"`
	AuthorName       string     `json:"author_name"`
	IllustratorName  string     `json:"illustrator_name"`
	CoverURL         string     `json:"cover_url"`
	PriceType        string     `json:"price_type"`
	StatusCode       string     `json:"status_code"`
	RatingsCode      string     `json:"ratings_code"`
	MonopolyYn       string     `json:"monopoly_yn"`
	GenreKeywordID   int64      `json:"genre_keyword_id"`
	LastEpisodeDate  *time.Time `json:"last_episode_date,omitempty"`
	CountHit         int64      `json:"count_hit"`
	CountRecommend   int64      `json:"count_recommend"`
	CountBookmark    int64      `json:"count_bookmark"`
	EpisodeCount     int64      `json:"episode_count"`
	WeeklyUpdateCnt  int64      `json:"weekly_update_count"`
	NewYn            string     `json:"new_yn"`
	UpYn             string     `json:"up_yn"`
	PromotionTypes   []string   `json:"promotion_types"`
	WaitForFreeYn    string     `json:"wait_for_free_yn"`

	// Viewer personalization. Guest requests carry the zero values.
	FreeEpisodeTicketCount int64      `json:"free_episode_ticket_count"`
	ReadedEpisodeCount     int64      `json:"readed_episode_count"`
	BookmarkYn             string     `json:"bookmark_yn"`
	OwnType                string     `json:"own_type,omitempty"`
	RecentReadEpisodeID    *int64     `json:"recent_read_episode_id,omitempty"`
	InterestStatus         string     `json:"interest_status"`
	InterestEndDate        *time.Time `json:"interest_end_date,omitempty"`
}

// CatalogService assembles product cards. One builder serves every caller so
// the projection cannot drift between surfaces.
type CatalogService interface {
	Card(ctx context.Context, viewerID, productID int64, now time.Time) (*ProductCard, error)
	Cards(ctx context.Context, viewerID int64, productIDs []int64, adultYn string, now time.Time) ([]*ProductCard, error)
	ListOpen(ctx context.Context, viewerID int64, adultYn string, page, perPage int, now time.Time) ([]*ProductCard, error)
	AuthorOtherWorks(ctx context.Context, viewerID, productID int64, now time.Time) ([]*ProductCard, error)
}

type catalogService struct {
	log        *logger.Logger
	products   repos.ProductRepo
	episodes   repos.EpisodeRepo
	files      repos.FileRepo
	tickets    repos.TicketbookRepo
	usage      repos.UsageRecordRepo
	bookmarks  repos.BookmarkRepo
	promotions repos.PromotionRepo
}

func NewCatalogService(
	log *logger.Logger,
	products repos.ProductRepo,
	episodes repos.EpisodeRepo,
	files repos.FileRepo,
	tickets repos.TicketbookRepo,
	usage repos.UsageRecordRepo,
	bookmarks repos.BookmarkRepo,
	promotions repos.PromotionRepo,
) CatalogService {
	return &catalogService{
		log:        log.With("service", "CatalogService"),
		products:   products,
		episodes:   episodes,
		files:      files,
		tickets:    tickets,
		usage:      usage,
		bookmarks:  bookmarks,
		promotions: promotions,
	}
}

func (cs *catalogService) Card(ctx context.Context, viewerID, productID int64, now time.Time) (*ProductCard, error) {
	product, err := cs.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apierr.NotFound(apierr.CodeNotFoundProduct)
	}
	return cs.build(ctx, viewerID, product, now)
}

// Cards hydrates in input order, dropping closed products and, for non-adult
// viewers, adult-rated ones.
func (cs *catalogService) Cards(ctx context.Context, viewerID int64, productIDs []int64, adultYn string, now time.Time) ([]*ProductCard, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	products, err := cs.products.GetByIDs(ctx, nil, productIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*types.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := make(map[int64]int, len(productIDs))
	var eligible []*types.Product
	for i, id := range productIDs {
		p, ok := byID[id]
		if !ok || p.OpenYn != types.YnYes {
			continue
		}
		if adultYn != types.YnYes && p.RatingsCode != types.RatingsAll {
			continue
		}
		if _, seen := order[id]; seen {
			continue
		}
		order[id] = i
		eligible = append(eligible, p)
	}

	var mu sync.Mutex
	cards := make([]*ProductCard, 0, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, product := range eligible {
		g.Go(func() error {
			card, err := cs.build(gctx, viewerID, product, now)
			if err != nil {
				return err
			}
			mu.Lock()
			cards = append(cards, card)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(cards, func(i, j int) bool {
		return order[cards[i].ProductID] < order[cards[j].ProductID]
	})
	return cards, nil
}

func (cs *catalogService) ListOpen(ctx context.Context, viewerID int64, adultYn string, page, perPage int, now time.Time) ([]*ProductCard, error) {
	ratings := ""
	if adultYn != types.YnYes {
		ratings = types.RatingsAll
	}
	products, err := cs.products.ListOpen(ctx, nil, ratings, page, perPage)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return cs.Cards(ctx, viewerID, ids, adultYn, now)
}

func (cs *catalogService) AuthorOtherWorks(ctx context.Context, viewerID, productID int64, now time.Time) ([]*ProductCard, error) {
	product, err := cs.products.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apierr.NotFound(apierr.CodeNotFoundProduct)
	}
	others, err := cs.products.ListByAuthor(ctx, nil, product.AuthorName, product.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(others))
	for _, p := range others {
		ids = append(ids, p.ID)
	}
	adultYn := types.YnYes
	if viewerID == 0 {
		adultYn = types.YnNo
	}
	return cs.Cards(ctx, viewerID, ids, adultYn, now)
}

func (cs *catalogService) build(ctx context.Context, viewerID int64, product *types.Product, now time.Time) (*ProductCard, error) {
	card := &ProductCard{
		ProductID:       product.ID,
		Title:           product.Title,
		AuthorName:      product.AuthorName,
		IllustratorName: product.IllustratorName,
		PriceType:       product.PriceType,
		StatusCode:      product.StatusCode,
		RatingsCode:     product.RatingsCode,
		MonopolyYn:      product.MonopolyYn,
		GenreKeywordID:  product.GenreKeywordID,
		LastEpisodeDate: product.LastEpisodeDate,
		CountHit:        product.CountHit,
		CountRecommend:  product.CountRecommend,
		CountBookmark:   product.CountBookmark,
		NewYn:           types.YnNo,
		UpYn:            types.YnNo,
		BookmarkYn:      types.YnNo,
		WaitForFreeYn:   types.YnNo,
		InterestStatus:  types.InterestNone,
	}

	if product.ThumbnailFileGroupID != nil {
		if item, err := cs.files.GetItemByGroupID(ctx, nil, *product.ThumbnailFileGroupID); err == nil && item != nil {
			card.CoverURL = item.CdnPath
		}
	}

	episodeCount, err := cs.episodes.CountOpenByProduct(ctx, nil, product.ID)
	if err != nil {
		return nil, err
	}
	card.EpisodeCount = episodeCount

	weekly, err := cs.episodes.CountOpenSince(ctx, nil, product.ID, now.Add(-weeklyWindow))
	if err != nil {
		return nil, err
	}
	card.WeeklyUpdateCnt = weekly

	if now.Sub(product.CreatedAt) <= newBadgeWindow {
		card.NewYn = types.YnYes
	}
	if product.LastEpisodeDate != nil && now.Sub(*product.LastEpisodeDate) <= upBadgeWindow {
		card.UpYn = types.YnYes
	}

	promoTypes, err := cs.promotions.ActiveTypesByProduct(ctx, nil, product.ID, now)
	if err != nil {
		return nil, err
	}
	card.PromotionTypes = promoTypes
	for _, t := range promoTypes {
		if t == types.PromotionWaitingForFree {
			card.WaitForFreeYn = types.YnYes
		}
	}

	if viewerID <= 0 {
		return card, nil
	}
	return card, cs.personalize(ctx, viewerID, product.ID, card, now)
}

func (cs *catalogService) personalize(ctx context.Context, viewerID, productID int64, card *ProductCard, now time.Time) error {
	freeTickets, err := cs.tickets.CountFreeByProduct(ctx, nil, viewerID, productID, now)
	if err != nil {
		return err
	}
	card.FreeEpisodeTicketCount = freeTickets

	readCount, err := cs.usage.CountReadEpisodes(ctx, nil, viewerID, productID)
	if err != nil {
		return err
	}
	card.ReadedEpisodeCount = readCount

	bookmark, err := cs.bookmarks.GetByUserProduct(ctx, nil, viewerID, productID)
	if err != nil {
		return err
	}
	if bookmark != nil && bookmark.UseYn == types.YnYes {
		card.BookmarkYn = types.YnYes
	}

	ticket, err := cs.tickets.BestMatch(ctx, nil, viewerID, productID, 0, now)
	if err != nil {
		return err
	}
	if ticket != nil {
		card.OwnType = ticket.OwnType
	}

	latest, err := cs.usage.LatestByUserProduct(ctx, nil, viewerID, productID)
	if err != nil {
		return err
	}
	if latest != nil && latest.EpisodeID != nil {
		card.RecentReadEpisodeID = latest.EpisodeID
	}
	interest := deriveInterest(latest, now)
	card.InterestStatus = interest.State
	card.InterestEndDate = interest.InterestEndDate
	return nil
}

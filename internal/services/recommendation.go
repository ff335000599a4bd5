package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	rediscache "github.com/likenovel/likenovel-backend/internal/clients/redis"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
)

const (
	topicCacheTTL = 5 * time.Minute

	guestSectionFirst  = 2
	guestSectionLast   = 5
	signedSectionFirst = 6
	signedSectionLast  = 9
)

// HomeSection is one rendered home slot.
type HomeSection struct {
	SectionNo     int            `json:"section_no"`
	SuggestID     int64          `json:"suggest_id"`
	SuggestName   string         `json:"suggest_name"`
	SuggestTarget int            `json:"suggest_target"`
	SuggestTitle  string         `json:"suggest_title"`
	Products      []*ProductCard `json:"products"`
}

// SimilarResult is the similar-to-last-read answer. BaseProductID is the
// product the similarity was computed against.
type SimilarResult struct {
	BaseProductID int64          `json:"base_product_id"`
	Type          string         `json:"type"`
	Products      []*ProductCard `json:"products"`
}

// RecommendationService serves the home sections and the similar-to-last-read
// shelf. Topic payloads are precomputed offline; this layer only picks and
// hydrates them.
type RecommendationService interface {
	HomeSections(ctx context.Context, userID int64, adultYn string, now time.Time) ([]*HomeSection, error)
	SimilarToLastRead(ctx context.Context, userID int64, similarType string, now time.Time) (*SimilarResult, error)
}

type recommendationService struct {
	log       *logger.Logger
	cache     rediscache.Cache
	recommend repos.RecommendRepo
	profiles  repos.ProfileRepo
	usage     repos.UsageRecordRepo
	catalog   CatalogService
}

func NewRecommendationService(
	log *logger.Logger,
	cache rediscache.Cache,
	recommend repos.RecommendRepo,
	profiles repos.ProfileRepo,
	usage repos.UsageRecordRepo,
	catalog CatalogService,
) RecommendationService {
	return &recommendationService{
		log:       log.With("service", "RecommendationService"),
		cache:     cache,
		recommend: recommend,
		profiles:  profiles,
		usage:     usage,
		catalog:   catalog,
	}
}

// HomeSections renders the four home slots. Guests read the guest section
// rows; signed-in readers read the personalized rows, steered by their
// feature vector. Sections whose topic is missing are skipped rather than
// failing the whole page.
func (rs *recommendationService) HomeSections(ctx context.Context, userID int64, adultYn string, now time.Time) ([]*HomeSection, error) {
	first, last := guestSectionFirst, guestSectionLast
	if userID > 0 {
		first, last = signedSectionFirst, signedSectionLast
	}
	ids := make([]int64, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, int64(id))
	}
	sections, err := rs.recommend.SectionsByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	var vector *types.AlgorithmFeature
	if userID > 0 {
		vector, err = rs.profiles.GetFeatureVector(ctx, nil, userID)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*HomeSection, 0, len(sections))
	for i, section := range sections {
		target := 1
		if !strings.HasPrefix(section.FeatureName, "default_") {
			target = vector.TargetFor(featureSlot(section.FeatureName))
		}
		topic, err := rs.topic(ctx, section.FeatureName, target)
		if err != nil {
			return nil, err
		}
		if topic == nil {
			rs.log.Warn("no topic for home section", "feature", section.FeatureName, "target", target)
			continue
		}
		productIDs, err := decodeNovelList(topic.NovelList)
		if err != nil {
			rs.log.Warn("bad novel_list payload", "topicID", topic.ID, "error", err)
			continue
		}
		cards, err := rs.catalog.Cards(ctx, userID, productIDs, adultYn, now)
		if err != nil {
			return nil, err
		}
		out = append(out, &HomeSection{
			SectionNo:     i + 1,
			SuggestID:     topic.ID,
			SuggestName:   section.FeatureName,
			SuggestTarget: topic.Target,
			SuggestTitle:  topic.Title,
			Products:      cards,
		})
	}
	return out, nil
}

// SimilarToLastRead keys the similar shelf off the reader's most recent
// usage record. Readers with no history get an empty result, not an error.
func (rs *recommendationService) SimilarToLastRead(ctx context.Context, userID int64, similarType string, now time.Time) (*SimilarResult, error) {
	if similarType == "" {
		similarType = types.SimilarTypeContent
	}
	latest, err := rs.usage.LatestByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &SimilarResult{Type: similarType}, nil
	}
	similar, err := rs.recommend.SimilarByProduct(ctx, nil, latest.ProductID, similarType)
	if err != nil {
		return nil, err
	}
	result := &SimilarResult{BaseProductID: latest.ProductID, Type: similarType}
	if similar == nil {
		return result, nil
	}
	productIDs, err := decodeNovelList(similar.SimilarList)
	if err != nil {
		rs.log.Warn("bad similar_list payload", "productID", latest.ProductID, "error", err)
		return result, nil
	}
	cards, err := rs.catalog.Cards(ctx, userID, productIDs, types.YnYes, now)
	if err != nil {
		return nil, err
	}
	result.Products = cards
	return result, nil
}

// topic reads through a short redis cache. The topic matrix changes once per
// offline batch run, so five minutes of staleness is invisible.
func (rs *recommendationService) topic(ctx context.Context, feature string, target int) (*types.RecommendSetTopic, error) {
	key := fmt.Sprintf("home:topic:%s:%d", feature, target)
	var cached types.RecommendSetTopic
	if hit, err := rs.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	var topic *types.RecommendSetTopic
	var err error
	if strings.HasPrefix(feature, "default_") {
		topic, err = rs.recommend.FirstTopicByFeature(ctx, nil, feature)
	} else {
		topic, err = rs.recommend.TopicByFeatureTarget(ctx, nil, feature, target)
	}
	if err != nil || topic == nil {
		return topic, err
	}
	if err := rs.cache.SetJSON(ctx, key, topic, topicCacheTTL); err != nil {
		rs.log.Warn("topic cache write failed", "key", key, "error", err)
	}
	return topic, nil
}

// featureSlot parses the trailing number of a feature name like "feature_3".
// Names without one map to slot 0, which TargetFor resolves to target 1.
func featureSlot(feature string) int {
	idx := strings.LastIndex(feature, "_")
	if idx < 0 {
		return 0
	}
	slot, err := strconv.Atoi(feature[idx+1:])
	if err != nil {
		return 0
	}
	return slot
}

func decodeNovelList(raw []byte) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

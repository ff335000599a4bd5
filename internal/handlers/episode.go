package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
)

type EpisodeHandler struct {
	episodes    services.EpisodeService
	entitlement services.EntitlementService
	metrics     *observability.Metrics
}

func NewEpisodeHandler(
	episodes services.EpisodeService,
	entitlement services.EntitlementService,
	metrics *observability.Metrics,
) *EpisodeHandler {
	return &EpisodeHandler{episodes: episodes, entitlement: entitlement, metrics: metrics}
}

// Resolve answers whether the viewer can read the episode right now.
func (eh *EpisodeHandler) Resolve(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	entitlement, err := eh.entitlement.Resolve(c.Request.Context(), viewerID(rd), episodeID, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, entitlement)
}

func (eh *EpisodeHandler) Purchase(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := eh.entitlement.PurchaseWithCash(c.Request.Context(), rd.UserID, episodeID, time.Now()); err != nil {
		RespondError(c, err)
		return
	}
	eh.metrics.RecordPurchase()
	RespondOK(c, gin.H{"purchased": true})
}

func (eh *EpisodeHandler) UseTicket(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	ticket, err := eh.entitlement.ConsumeTicket(c.Request.Context(), rd.UserID, episodeID, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, ticket)
}

func (eh *EpisodeHandler) Like(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := eh.entitlement.Like(c.Request.Context(), rd.UserID, episodeID, time.Now()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"liked": true})
}

func (eh *EpisodeHandler) Unlike(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := eh.entitlement.Unlike(c.Request.Context(), rd.UserID, episodeID, time.Now()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"liked": false})
}

// Save creates or updates an episode and reassembles its EPUB.
func (eh *EpisodeHandler) Save(c *gin.Context) {
	var req struct {
		ProductID          int64      `json:"product_id"`
		EpisodeID          *int64     `json:"episode_id"`
		SaveYn             string     `json:"save_yn"`
		Title              string     `json:"title"`
		Content            string     `json:"content"`
		AuthorComment      string     `json:"author_comment"`
		PriceType          string     `json:"price_type"`
		OpenYn             string     `json:"open_yn"`
		CommentOpenYn      string     `json:"comment_open_yn"`
		EvaluationOpenYn   string     `json:"evaluation_open_yn"`
		PublishReserveYn   string     `json:"publish_reserve_yn"`
		PublishReserveDate *time.Time `json:"publish_reserve_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	episode, err := eh.episodes.SaveEpisode(c.Request.Context(), services.SaveEpisodeInput{
		ProductID:          req.ProductID,
		EpisodeID:          req.EpisodeID,
		SaveYn:             req.SaveYn,
		Title:              req.Title,
		Content:            req.Content,
		AuthorComment:      req.AuthorComment,
		PriceType:          req.PriceType,
		OpenYn:             req.OpenYn,
		CommentOpenYn:      req.CommentOpenYn,
		EvaluationOpenYn:   req.EvaluationOpenYn,
		PublishReserveYn:   req.PublishReserveYn,
		PublishReserveDate: req.PublishReserveDate,
	}, time.Now())
	if err != nil {
		eh.metrics.RecordEpubBuild("error")
		RespondError(c, err)
		return
	}
	eh.metrics.RecordEpubBuild("ok")
	RespondOK(c, episode)
}

func (eh *EpisodeHandler) ToggleOpen(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	var req struct {
		OpenYn string `json:"open_yn"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "INVALID_REQUEST_BODY")
		return
	}
	episode, err := eh.episodes.ToggleOpen(c.Request.Context(), episodeID, req.OpenYn, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, episode)
}

func (eh *EpisodeHandler) Delete(c *gin.Context) {
	episodeID, ok := pathID(c, "episodeID")
	if !ok {
		return
	}
	if err := eh.episodes.DeleteEpisode(c.Request.Context(), episodeID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

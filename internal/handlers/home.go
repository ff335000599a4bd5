package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
)

type HomeHandler struct {
	recommendations services.RecommendationService
}

func NewHomeHandler(recommendations services.RecommendationService) *HomeHandler {
	return &HomeHandler{recommendations: recommendations}
}

func (hh *HomeHandler) Sections(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	sections, err := hh.recommendations.HomeSections(c.Request.Context(), viewerID(rd), viewerAdultYn(rd), time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, sections)
}

func (hh *HomeHandler) Similar(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	result, err := hh.recommendations.SimilarToLastRead(c.Request.Context(), rd.UserID, c.Query("type"), time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/likenovel/likenovel-backend/internal/observability"
	"github.com/likenovel/likenovel-backend/internal/requestdata"
	"github.com/likenovel/likenovel-backend/internal/services"
	"github.com/likenovel/likenovel-backend/internal/types"
)

type ProductHandler struct {
	catalog    services.CatalogService
	promotions services.PromotionService
	interest   services.InterestService
	metrics    *observability.Metrics
}

func NewProductHandler(
	catalog services.CatalogService,
	promotions services.PromotionService,
	interest services.InterestService,
	metrics *observability.Metrics,
) *ProductHandler {
	return &ProductHandler{catalog: catalog, promotions: promotions, interest: interest, metrics: metrics}
}

func (ph *ProductHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	cards, err := ph.catalog.ListOpen(c.Request.Context(), viewerID(rd), viewerAdultYn(rd), page, perPage, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cards)
}

// Detail also records the view for signed-in readers, which is the hook that
// mints promotion vouchers. Guests get the card only.
func (ph *ProductHandler) Detail(c *gin.Context) {
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	now := time.Now()

	var vouchers []services.IssuedVoucher
	if rd.SignedIn() {
		issued, err := ph.promotions.OnView(c.Request.Context(), rd.UserID, productID, now)
		if err != nil {
			RespondError(c, err)
			return
		}
		vouchers = issued
		for _, v := range issued {
			ph.metrics.RecordVouchers(v.TicketType, v.Count)
		}
	}

	card, err := ph.catalog.Card(c.Request.Context(), viewerID(rd), productID, now)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"product": card, "issued_vouchers": vouchers})
}

func (ph *ProductHandler) AuthorOtherWorks(c *gin.Context) {
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	cards, err := ph.catalog.AuthorOtherWorks(c.Request.Context(), viewerID(rd), productID, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, cards)
}

func (ph *ProductHandler) InterestStatus(c *gin.Context) {
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	status, err := ph.interest.Status(c.Request.Context(), rd.UserID, productID, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, status)
}

func (ph *ProductHandler) ReviveInterest(c *gin.Context) {
	productID, ok := pathID(c, "productID")
	if !ok {
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())
	status, err := ph.interest.Revive(c.Request.Context(), rd.UserID, productID, time.Now())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, status)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "INVALID_PATH_ID")
		return 0, false
	}
	return id, true
}

func viewerID(rd *requestdata.RequestData) int64 {
	if rd == nil {
		return 0
	}
	return rd.UserID
}

func viewerAdultYn(rd *requestdata.RequestData) string {
	if rd == nil {
		return types.YnNo
	}
	return rd.AdultYn
}

package bills

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telbill/internal/logger"
	apperrors "telbill/pkg/errors"
)

type Handler struct {
	store  BillStore
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(store BillStore, log logger.Logger) *Handler {
	return &Handler{store: store, logger: log, now: time.Now}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/bills", h.ListBills)
		v1.GET("/bills/:subscriber", h.GetBill)
		v1.GET("/bills/:subscriber/:month", h.GetBill)
		v1.GET("/bills/:subscriber/:month/:year", h.GetBill)
	}
}

// ListBills godoc
// @Summary      List bills
// @Description  Listing every bill is not allowed; ask for one subscriber instead
// @Tags         bills
// @Produce      json
// @Failure      403  {object}  map[string]interface{}
// @Router       /bills [get]
func (h *Handler) ListBills(c *gin.Context) {
	c.JSON(http.StatusForbidden, apperrors.ToErrorResponse(apperrors.ErrBillListing))
}

// GetBill godoc
// @Summary      Get a telephone bill
// @Description  Get the bill of a subscriber for a closed period. Without a period the last closed month is used; a month without a year is its most recent closed occurrence.
// @Tags         bills
// @Produce      json
// @Param        subscriber  path      string  true   "Subscriber phone number"
// @Param        month       path      string  false  "Three letter month abbreviation, e.g. Apr"
// @Param        year        path      string  false  "Four digit year"
// @Success      200         {object}  BillResponse
// @Failure      400         {object}  map[string]interface{}
// @Failure      500         {object}  map[string]interface{}
// @Router       /bills/{subscriber}/{month}/{year} [get]
func (h *Handler) GetBill(c *gin.Context) {
	ctx := c.Request.Context()
	subscriber := c.Param("subscriber")

	period, err := ParsePeriod(c.Param("month"), c.Param("year"), h.now())
	if err != nil {
		appErr := apperrors.ErrInvalidPeriod.WithMessage(err.Error())
		c.JSON(appErr.Status, apperrors.ToErrorResponse(appErr))
		return
	}

	bill, err := h.store.Get(ctx, subscriber, period)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to load bill",
			"error", err,
			"subscriber", subscriber,
			"period", period.Key(),
		)
		appErr := apperrors.ErrInternal.WithCause(err)
		c.JSON(appErr.Status, apperrors.ToErrorResponse(appErr))
		return
	}

	c.JSON(http.StatusOK, NewBillResponse(bill))
}

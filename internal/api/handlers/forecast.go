package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"batteryctl/internal/analysis"
	"batteryctl/internal/api/models"
	"batteryctl/internal/forecast"
)

// MarketSource is the slice of the market client this handler needs.
type MarketSource interface {
	Forecast(ctx context.Context, maxHours float64) ([]forecast.RawSlot, error)
}

// ForecastHandler serves the conditioned upstream forecast
type ForecastHandler struct {
	market  MarketSource
	gridFee float64
	source  string
	hours   float64
}

func NewForecastHandler(market MarketSource, gridFee float64, source string, maxHours float64) *ForecastHandler {
	return &ForecastHandler{market: market, gridFee: gridFee, source: source, hours: maxHours}
}

// GetForecast handles GET /api/v1/forecast
func (h *ForecastHandler) GetForecast(c *gin.Context) {
	if h.market == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    "NO_MARKET_SOURCE",
			Message: "market data is disabled",
		}})
		return
	}

	hours := h.hours
	if q := c.Query("hours"); q != "" {
		parsed, err := strconv.ParseFloat(q, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "hours must be a positive number",
			}})
			return
		}
		hours = parsed
	}

	raw, err := h.market.Forecast(c.Request.Context(), hours)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    "UPSTREAM_ERROR",
			Message: err.Error(),
		}})
		return
	}

	slots := forecast.Normalize(raw, h.gridFee)
	c.JSON(http.StatusOK, models.ForecastResponse{
		Source: h.source,
		Slots:  slots,
		Stats:  analysis.ComputePriceStats(slots),
	})
}

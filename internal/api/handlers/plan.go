package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"batteryctl/internal/api/models"
	"batteryctl/internal/forecast"
	"batteryctl/internal/model"
	"batteryctl/internal/optimizer"
)

// PlanHandler computes standalone plans from client-supplied forecasts
type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// ComputePlan handles POST /api/v1/plan
func (h *PlanHandler) ComputePlan(c *gin.Context) {
	var req models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		}})
		return
	}

	raw := make([]forecast.RawSlot, 0, len(req.Slots))
	for _, s := range req.Slots {
		end := s.End
		if end.IsZero() {
			end = s.Start.Add(time.Hour)
		}
		raw = append(raw, forecast.RawSlot{Start: s.Start, End: end, Price: s.Price, Unit: s.Unit})
	}
	slots := forecast.Normalize(raw, req.GridFeeEURPerKWh)

	battery := model.BatteryProfile{
		CapacityKWh:     req.Battery.CapacityKWh,
		MaxChargePowerW: req.Battery.MaxChargePowerW,
	}
	result, err := optimizer.Optimize(slots, optimizer.Params{
		Battery:    battery,
		HouseLoadW: req.HouseLoadW,
		SocSteps:   req.SocSteps,
	}, req.CurrentSocPercent)
	if err != nil {
		code := "PLAN_FAILED"
		switch {
		case errors.Is(err, optimizer.ErrEmptyForecast):
			code = "EMPTY_FORECAST"
		case errors.Is(err, optimizer.ErrInvalidCapacity):
			code = "INVALID_BATTERY"
		case errors.Is(err, optimizer.ErrDegenerateHorizon):
			code = "DEGENERATE_HORIZON"
		}
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		}})
		return
	}

	c.JSON(http.StatusOK, models.PlanResponse{
		ID:     uuid.NewString(),
		Status: "completed",
		Plan:   result,
	})
}

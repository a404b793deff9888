package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"batteryctl/internal/api/models"
	"batteryctl/internal/store"
)

// RunSource lists persisted control evaluations.
type RunSource interface {
	Recent(ctx context.Context, limit int) ([]store.Run, error)
}

// RunsHandler serves the evaluation history
type RunsHandler struct {
	runs RunSource
}

func NewRunsHandler(runs RunSource) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    "NO_RUN_STORE",
			Message: "run history is disabled",
		}})
		return
	}

	limit := 50
	if q := c.Query("limit"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "limit must be a positive integer",
			}})
			return
		}
		limit = parsed
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrorDetail{
			Code:    "STORE_ERROR",
			Message: err.Error(),
		}})
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	c.JSON(http.StatusOK, models.RunsResponse{Runs: runs})
}

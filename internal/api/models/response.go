package models

import (
	"batteryctl/internal/analysis"
	"batteryctl/internal/model"
	"batteryctl/internal/optimizer"
	"batteryctl/internal/store"
)

// PlanResponse represents the response from a planning request
type PlanResponse struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Plan   *optimizer.Result `json:"plan"`
}

// ForecastResponse carries the conditioned price slots and their statistics
type ForecastResponse struct {
	Source string              `json:"source"`
	Slots  []model.PriceSlot   `json:"slots"`
	Stats  analysis.PriceStats `json:"stats"`
}

// RunsResponse lists recent control evaluations
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

package models

import "time"

// PlanRequest represents a standalone planning request
type PlanRequest struct {
	Slots   []SlotInput  `json:"slots" binding:"required"`
	Battery BatteryInput `json:"battery" binding:"required"`

	CurrentSocPercent float64 `json:"current_soc_percent"`
	HouseLoadW        float64 `json:"house_load_w"`
	SocSteps          int     `json:"soc_steps"`
	GridFeeEURPerKWh  float64 `json:"grid_fee_eur_per_kwh"`
}

// SlotInput is one priced interval as submitted by the client.
// A missing end defaults to one hour after start.
type SlotInput struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end"`
	Price float64   `json:"price"`
	Unit  string    `json:"unit"`
}

// BatteryInput describes the battery for a planning request
type BatteryInput struct {
	CapacityKWh     float64 `json:"capacity_kwh" binding:"required"`
	MaxChargePowerW float64 `json:"max_charge_power_w"`
}

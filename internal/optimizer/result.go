package optimizer

import (
	"math"
	"time"

	"batteryctl/internal/model"
)

// TrajectoryPoint is one realized slot of the recommended plan.
type TrajectoryPoint struct {
	SlotIndex       int       `json:"slot_index"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationHours   float64   `json:"duration_hours"`
	SocStartPercent float64   `json:"soc_start_percent"`
	SocEndPercent   float64   `json:"soc_end_percent"`
	GridEnergyKWh   float64   `json:"grid_energy_kwh"`
	PriceEURPerKWh  float64   `json:"price_eur_per_kwh"`
}

// Result is the complete outcome of one optimization call. ProjectedCostEUR
// reflects real consumption only: the terminal valuation applied inside the
// cost table is folded back in so leftover charge does not inflate the
// number.
type Result struct {
	InitialSocPercent          float64 `json:"initial_soc_percent"`
	NextStepSocPercent         float64 `json:"next_step_soc_percent"`
	RecommendedFinalSocPercent float64 `json:"recommended_final_soc_percent"`

	ProjectedCostEUR       float64 `json:"projected_cost_eur"`
	ProjectedGridEnergyKWh float64 `json:"projected_grid_energy_kwh"`
	AveragePriceEURPerKWh  float64 `json:"average_price_eur_per_kwh"`

	ForecastSamples int     `json:"forecast_samples"`
	ForecastHours   float64 `json:"forecast_hours"`

	Trajectory []TrajectoryPoint `json:"trajectory"`

	PriceFloorEURPerKWh   float64 `json:"price_floor_eur_per_kwh"`
	PriceCeilingEURPerKWh float64 `json:"price_ceiling_eur_per_kwh"`
}

type reconstructInputs struct {
	policy        [][]int
	steps         int
	percentStep   float64
	energyPerStep float64
	avgPrice      float64
	totalHours    float64
	terminal      TerminalValue
	socPercent    float64
}

// reconstruct walks the policy table forward from the current SOC and
// accumulates the trajectory and summary metrics.
func reconstruct(slots []model.PriceSlot, p Params, in reconstructInputs) *Result {
	soc := in.socPercent
	if soc < 0 {
		soc = 0
	}
	if soc > 100 {
		soc = 100
	}
	state := int(math.Round(soc / in.percentStep))
	if state < 0 {
		state = 0
	}
	if state > in.steps {
		state = in.steps
	}
	initialState := state

	trajectory := make([]TrajectoryPoint, 0, len(slots))
	gridTotal := 0.0
	costTotal := 0.0
	floor := math.Inf(1)
	ceiling := math.Inf(-1)

	for idx, slot := range slots {
		next := in.policy[idx][state]
		delta := next - state
		loadKWh := (p.HouseLoadW / 1000.0) * slot.DurationHours
		gridKWh := loadKWh + float64(delta)*in.energyPerStep
		if gridKWh < 0 {
			gridKWh = 0
		}
		costTotal += slot.Price * gridKWh
		gridTotal += gridKWh
		if slot.Price < floor {
			floor = slot.Price
		}
		if slot.Price > ceiling {
			ceiling = slot.Price
		}
		trajectory = append(trajectory, TrajectoryPoint{
			SlotIndex:       idx,
			Start:           slot.Start,
			End:             slot.End,
			DurationHours:   slot.DurationHours,
			SocStartPercent: float64(state) * in.percentStep,
			SocEndPercent:   float64(next) * in.percentStep,
			GridEnergyKWh:   gridKWh,
			PriceEURPerKWh:  slot.Price,
		})
		state = next
	}

	// Undo the boundary bias: the table already valued the final stored
	// energy, so the reported cost carries the same term.
	finalEnergy := float64(state) * in.energyPerStep
	costTotal += in.terminal(in.avgPrice, finalEnergy)

	nextState := initialState
	if len(trajectory) > 0 {
		nextState = in.policy[0][initialState]
	}

	return &Result{
		InitialSocPercent:          float64(initialState) * in.percentStep,
		NextStepSocPercent:         float64(nextState) * in.percentStep,
		RecommendedFinalSocPercent: float64(state) * in.percentStep,
		ProjectedCostEUR:           costTotal,
		ProjectedGridEnergyKWh:     gridTotal,
		AveragePriceEURPerKWh:      in.avgPrice,
		ForecastSamples:            len(slots),
		ForecastHours:              in.totalHours,
		Trajectory:                 trajectory,
		PriceFloorEURPerKWh:        floor,
		PriceCeilingEURPerKWh:      ceiling,
	}
}

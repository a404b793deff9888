// Package optimizer computes a cost-minimal charge plan for a battery-backed
// site over a horizon of priced time slots. It is a plain backward-induction
// DP on a discretized SOC lattice: a cost table over (slot, SOC level) is
// filled from the end of the horizon backwards, a policy table records the
// winning next level per cell, and the plan is read out by walking the
// policy forward from the current SOC.
//
// Grid export is not modeled: a transition that would push energy back onto
// the grid is clamped to zero draw, never credited.
package optimizer

import (
	"errors"
	"math"

	"batteryctl/internal/model"
)

// DefaultSocSteps discretizes SOC into 1% increments (101 lattice levels).
const DefaultSocSteps = 100

var (
	ErrEmptyForecast     = errors.New("empty forecast")
	ErrInvalidCapacity   = errors.New("invalid battery capacity")
	ErrDegenerateHorizon = errors.New("degenerate horizon")
)

// TerminalValue prices the energy still stored when the horizon ends. It
// receives the time-weighted average effective price over the horizon and
// the leftover energy in kWh, and returns the cost contribution (negative =
// credit). The default credits leftover charge at the average price, which
// keeps the optimizer from draining or hoarding the battery just to game
// the boundary.
type TerminalValue func(avgPrice, energyKWh float64) float64

// AveragePriceCredit is the default terminal valuation.
func AveragePriceCredit(avgPrice, energyKWh float64) float64 {
	return -avgPrice * energyKWh
}

// Params carries everything static for one optimization call.
type Params struct {
	Battery    model.BatteryProfile
	HouseLoadW float64

	// SocSteps sets the lattice resolution; 0 means DefaultSocSteps.
	SocSteps int

	// Terminal overrides the end-of-horizon valuation; nil means
	// AveragePriceCredit.
	Terminal TerminalValue
}

// Optimize computes the cost-optimal SOC trajectory for the given slots and
// current SOC (percent, clamped to [0,100]). It is a pure function: all
// tables are allocated per call and discarded on return.
//
// Slots must be ordered by start with positive durations, as produced by
// forecast.Normalize. Prices are effective (fee included).
func Optimize(slots []model.PriceSlot, p Params, currentSocPercent float64) (*Result, error) {
	if len(slots) == 0 {
		return nil, ErrEmptyForecast
	}
	if p.Battery.CapacityKWh <= 0 {
		return nil, ErrInvalidCapacity
	}
	steps := p.SocSteps
	if steps <= 0 {
		steps = DefaultSocSteps
	}
	terminal := p.Terminal
	if terminal == nil {
		terminal = AveragePriceCredit
	}

	totalHours := 0.0
	for _, s := range slots {
		totalHours += s.DurationHours
	}
	if totalHours <= 0 {
		return nil, ErrDegenerateHorizon
	}

	avgPrice := 0.0
	for _, s := range slots {
		avgPrice += s.Price * s.DurationHours
	}
	avgPrice /= totalHours

	horizon := len(slots)
	numStates := steps + 1
	percentStep := 100.0 / float64(steps)
	energyPerStep := p.Battery.CapacityKWh / float64(steps)

	cost := make([][]float64, horizon+1)
	for i := range cost {
		cost[i] = make([]float64, numStates)
	}
	policy := make([][]int, horizon)
	for i := range policy {
		policy[i] = make([]int, numStates)
	}

	// Terminal row: value leftover stored energy instead of a real slot.
	for state := 0; state < numStates; state++ {
		cost[horizon][state] = terminal(avgPrice, float64(state)*energyPerStep)
	}

	for idx := horizon - 1; idx >= 0; idx-- {
		slot := slots[idx]
		loadKWh := (p.HouseLoadW / 1000.0) * slot.DurationHours
		chargeLimitKWh := (p.Battery.MaxChargePowerW / 1000.0) * slot.DurationHours

		// The epsilon keeps exact multiples of energyPerStep from being
		// floored away.
		maxChargeSteps := int(math.Floor(chargeLimitKWh/energyPerStep + 1e-9))
		maxDischargeSteps := int(math.Floor(loadKWh/energyPerStep + 1e-9))

		for state := 0; state < numStates; state++ {
			best := math.Inf(1)
			bestNext := state

			up := maxChargeSteps
			if limit := numStates - 1 - state; up > limit {
				up = limit
			}
			down := maxDischargeSteps
			if down > state {
				down = state
			}

			// Ascending scan with a strict < keeps the first-found minimum,
			// so ties resolve to the smallest delta. Determinism here is
			// part of the contract.
			for delta := -down; delta <= up; delta++ {
				next := state + delta
				gridKWh := loadKWh + float64(delta)*energyPerStep
				if gridKWh < -1e-9 {
					continue
				}
				if gridKWh < 0 {
					gridKWh = 0
				}
				total := slot.Price*gridKWh + cost[idx+1][next]
				if total < best {
					best = total
					bestNext = next
				}
			}

			// delta=0 is normally always feasible; holding is the fallback
			// at lattice boundaries.
			if math.IsInf(best, 1) {
				best = cost[idx+1][state]
				bestNext = state
			}

			cost[idx][state] = best
			policy[idx][state] = bestNext
		}
	}

	return reconstruct(slots, p, reconstructInputs{
		policy:        policy,
		steps:         steps,
		percentStep:   percentStep,
		energyPerStep: energyPerStep,
		avgPrice:      avgPrice,
		totalHours:    totalHours,
		terminal:      terminal,
		socPercent:    currentSocPercent,
	}), nil
}

package model

import "time"

// PriceSlot is one forecast interval with an effective energy price, i.e.
// the market price with the fixed grid fee already folded in. Slots coming
// out of the conditioner are ordered by Start, non-overlapping, and carry a
// positive duration. Gaps between slots are allowed.
type PriceSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// DurationHours is End-Start in hours, precomputed because every
	// downstream energy calculation needs it.
	DurationHours float64 `json:"duration_hours"`

	// Price is EUR per kWh, effective (grid fee included).
	Price float64 `json:"price_eur_per_kwh"`
}

func (s PriceSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

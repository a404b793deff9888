package analysis

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"batteryctl/internal/model"
)

// PriceStats summarizes the effective price distribution of a conditioned
// forecast. The p95-p05 spread is the quick signal for how much a
// storage plan can save: a flat forecast leaves nothing to shift.
type PriceStats struct {
	Samples int       `json:"samples"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Hours   float64   `json:"hours"`

	Min  float64 `json:"min_eur_per_kwh"`
	Max  float64 `json:"max_eur_per_kwh"`
	Mean float64 `json:"mean_eur_per_kwh"`
	P05  float64 `json:"p05_eur_per_kwh"`
	P95  float64 `json:"p95_eur_per_kwh"`

	SpreadP95P05 float64 `json:"spread_p95_p05"`
}

// ComputePriceStats expects slots as produced by forecast.Normalize
// (ordered, positive durations). Zero slots yield a zero value.
func ComputePriceStats(slots []model.PriceSlot) PriceStats {
	s := PriceStats{}
	if len(slots) == 0 {
		return s
	}
	s.Samples = len(slots)
	s.StartAt = slots[0].Start
	s.EndAt = slots[len(slots)-1].End

	prices := make([]float64, 0, len(slots))
	for _, slot := range slots {
		prices = append(prices, slot.Price)
		s.Hours += slot.DurationHours
	}
	sort.Float64s(prices)

	s.Min = prices[0]
	s.Max = prices[len(prices)-1]
	s.Mean = stat.Mean(prices, nil)
	s.P05 = stat.Quantile(0.05, stat.Empirical, prices, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, prices, nil)
	s.SpreadP95P05 = s.P95 - s.P05
	return s
}

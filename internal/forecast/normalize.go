package forecast

import (
	"sort"
	"strings"
	"time"

	"batteryctl/internal/model"
)

// RawSlot is one priced interval as reported by a provider, before
// conditioning. Price is in whatever unit the provider uses; Unit, when
// set, drives the conversion to EUR/kWh.
type RawSlot struct {
	Start time.Time
	End   time.Time
	Price float64
	Unit  string
}

// Normalize turns raw provider slots into the optimizer's cost basis: unit
// conversion to EUR/kWh, the fixed grid fee folded into every price,
// duplicates resolved, malformed records dropped, output ordered by start
// ascending. The optimizer relies on that ordering and never re-sorts.
//
// When two records cover the identical start timestamp the cheaper quote
// wins. That is a policy choice, not a correctness requirement: when
// sources disagree we assume the lower price is the more reliable one.
func Normalize(raw []RawSlot, gridFee float64) []model.PriceSlot {
	byStart := make(map[int64]model.PriceSlot, len(raw))
	for _, r := range raw {
		if r.Start.IsZero() || !r.End.After(r.Start) {
			continue
		}
		price := scalePrice(r.Price, r.Unit)
		slot := model.PriceSlot{
			Start:         r.Start.UTC(),
			End:           r.End.UTC(),
			DurationHours: r.End.Sub(r.Start).Hours(),
			Price:         price + gridFee,
		}
		key := slot.Start.UnixNano()
		if existing, ok := byStart[key]; ok && existing.Price <= slot.Price {
			continue
		}
		byStart[key] = slot
	}

	slots := make([]model.PriceSlot, 0, len(byStart))
	for _, s := range byStart {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// scalePrice converts a provider price into EUR/kWh. Labeled units are
// trusted; unlabeled values fall back to magnitude heuristics (spot prices
// above 5 are assumed ct/kWh, above 500 EUR/MWh).
func scalePrice(price float64, unit string) float64 {
	if unit != "" {
		u := strings.ToLower(unit)
		if strings.Contains(u, "mwh") {
			return price / 1000.0
		}
		if strings.Contains(u, "ct") || strings.Contains(u, "cent") {
			return price / 100.0
		}
	}
	if price > 500.0 {
		return price / 1000.0
	}
	if price > 5.0 {
		return price / 100.0
	}
	return price
}

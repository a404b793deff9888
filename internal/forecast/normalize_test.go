package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(h int) time.Time {
	return time.Date(2025, 9, 19, h, 0, 0, 0, time.UTC)
}

func TestNormalizeDeduplicatesAndScales(t *testing.T) {
	raw := []RawSlot{
		{Start: ts(10), End: ts(11), Price: 0.25},
		// Same window from a second source in ct/kWh: scales to 0.25, the
		// existing (equal) quote wins.
		{Start: ts(10), End: ts(11), Price: 25, Unit: "ct/kWh"},
		{Start: ts(11), End: ts(12), Price: 42.0, Unit: "Eur/MWh"},
	}

	slots := Normalize(raw, 0)
	require.Len(t, slots, 2)
	assert.InDelta(t, 0.25, slots[0].Price, 1e-9)
	assert.InDelta(t, 0.042, slots[1].Price, 1e-9)
	assert.True(t, slots[0].Start.Before(slots[1].Start))
}

func TestNormalizeKeepsCheaperQuote(t *testing.T) {
	raw := []RawSlot{
		{Start: ts(10), End: ts(11), Price: 0.30},
		{Start: ts(10), End: ts(11), Price: 0.20},
		{Start: ts(10), End: ts(11), Price: 0.40},
	}
	slots := Normalize(raw, 0)
	require.Len(t, slots, 1)
	assert.InDelta(t, 0.20, slots[0].Price, 1e-9)
}

func TestNormalizeDropsMalformedRecords(t *testing.T) {
	raw := []RawSlot{
		{Start: ts(10), End: ts(10), Price: 0.25}, // zero length
		{Start: ts(12), End: ts(11), Price: 0.25}, // reversed
		{End: ts(11), Price: 0.25},                // missing start
		{Start: ts(13), End: ts(14), Price: 0.25}, // fine
	}
	slots := Normalize(raw, 0)
	require.Len(t, slots, 1)
	assert.Equal(t, ts(13), slots[0].Start)
	assert.InDelta(t, 1.0, slots[0].DurationHours, 1e-9)
}

func TestNormalizeFoldsGridFee(t *testing.T) {
	raw := []RawSlot{
		{Start: ts(10), End: ts(11), Price: 0.25},
		{Start: ts(11), End: ts(12), Price: 42.0, Unit: "Eur/MWh"},
	}
	slots := Normalize(raw, 0.02)
	require.Len(t, slots, 2)
	assert.InDelta(t, 0.27, slots[0].Price, 1e-9)
	assert.InDelta(t, 0.062, slots[1].Price, 1e-9)
}

func TestNormalizeOrdersByStart(t *testing.T) {
	raw := []RawSlot{
		{Start: ts(14), End: ts(15), Price: 0.1},
		{Start: ts(10), End: ts(11), Price: 0.2},
		{Start: ts(12), End: ts(13), Price: 0.3},
	}
	slots := Normalize(raw, 0)
	require.Len(t, slots, 3)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}

func TestScalePriceHeuristics(t *testing.T) {
	// Unlabeled magnitudes: >500 reads as EUR/MWh, >5 as ct/kWh.
	assert.InDelta(t, 0.6, scalePrice(600, ""), 1e-9)
	assert.InDelta(t, 0.25, scalePrice(25, ""), 1e-9)
	assert.InDelta(t, 0.25, scalePrice(0.25, ""), 1e-9)
}

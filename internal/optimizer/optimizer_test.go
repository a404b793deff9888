package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batteryctl/internal/model"
)

func hourlySlots(prices []float64) []model.PriceSlot {
	start := time.Date(2025, 9, 19, 10, 0, 0, 0, time.UTC)
	slots := make([]model.PriceSlot, len(prices))
	for i, p := range prices {
		s := start.Add(time.Duration(i) * time.Hour)
		slots[i] = model.PriceSlot{
			Start:         s,
			End:           s.Add(time.Hour),
			DurationHours: 1.0,
			Price:         p,
		}
	}
	return slots
}

func TestOptimizeEmptyForecast(t *testing.T) {
	_, err := Optimize(nil, Params{Battery: model.BatteryProfile{CapacityKWh: 10}}, 50)
	require.ErrorIs(t, err, ErrEmptyForecast)
}

func TestOptimizeInvalidCapacity(t *testing.T) {
	slots := hourlySlots([]float64{0.2})
	_, err := Optimize(slots, Params{Battery: model.BatteryProfile{CapacityKWh: 0}}, 50)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = Optimize(slots, Params{Battery: model.BatteryProfile{CapacityKWh: -1}}, 50)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestOptimizeDegenerateHorizon(t *testing.T) {
	start := time.Date(2025, 9, 19, 10, 0, 0, 0, time.UTC)
	slots := []model.PriceSlot{{Start: start, End: start, DurationHours: 0, Price: 0.2}}
	_, err := Optimize(slots, Params{Battery: model.BatteryProfile{CapacityKWh: 10}}, 50)
	require.ErrorIs(t, err, ErrDegenerateHorizon)
}

func TestOptimizeSocWithinBounds(t *testing.T) {
	slots := hourlySlots([]float64{0.30, 0.10, 0.45, 0.05, 0.22, 0.31})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 12, MaxChargePowerW: 500},
		HouseLoadW: 1200,
	}
	for _, soc := range []float64{-10, 0, 37.5, 100, 140} {
		res, err := Optimize(slots, p, soc)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.NextStepSocPercent, 0.0)
		assert.LessOrEqual(t, res.NextStepSocPercent, 100.0)
		assert.GreaterOrEqual(t, res.RecommendedFinalSocPercent, 0.0)
		assert.LessOrEqual(t, res.RecommendedFinalSocPercent, 100.0)
		for _, pt := range res.Trajectory {
			assert.GreaterOrEqual(t, pt.GridEnergyKWh, 0.0)
		}
	}
}

func TestOptimizeIsPure(t *testing.T) {
	slots := hourlySlots([]float64{0.30, 0.10, 0.45, 0.05})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 12, MaxChargePowerW: 500},
		HouseLoadW: 1200,
	}
	first, err := Optimize(slots, p, 40)
	require.NoError(t, err)
	second, err := Optimize(slots, p, 40)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUniformPriceRaiseIncreasesCost(t *testing.T) {
	// Start empty with no charge capability: every slot draws exactly the
	// house load from the grid and nothing is left at the horizon, so a
	// uniform raise must increase the projected cost strictly.
	prices := []float64{0.20, 0.30, 0.25}
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 10, MaxChargePowerW: 0},
		HouseLoadW: 1000,
	}
	base, err := Optimize(hourlySlots(prices), p, 0)
	require.NoError(t, err)

	raised := make([]float64, len(prices))
	for i, v := range prices {
		raised[i] = v + 0.10
	}
	bumped, err := Optimize(hourlySlots(raised), p, 0)
	require.NoError(t, err)
	assert.Greater(t, bumped.ProjectedCostEUR, base.ProjectedCostEUR)
}

func TestNoChargeWithZeroChargePower(t *testing.T) {
	slots := hourlySlots([]float64{0.05, 0.50, 0.01, 0.80})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 10, MaxChargePowerW: 0},
		HouseLoadW: 800,
	}
	res, err := Optimize(slots, p, 70)
	require.NoError(t, err)
	for _, pt := range res.Trajectory {
		assert.LessOrEqual(t, pt.SocEndPercent, pt.SocStartPercent+1e-9,
			"slot %d charged despite zero charge power", pt.SlotIndex)
	}
}

func TestDischargeBoundedByHouseLoad(t *testing.T) {
	// With no export credit there is never a reason (or a way) to discharge
	// faster than the house load: the per-slot SOC drop is capped by the
	// load energy and grid draw never goes negative.
	slots := hourlySlots([]float64{0.10})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 10, MaxChargePowerW: 500},
		HouseLoadW: 200,
	}
	res, err := Optimize(slots, p, 50)
	require.NoError(t, err)
	pt := res.Trajectory[0]
	// 200 W for 1 h = 0.2 kWh = 2 lattice steps = 2 SOC percent.
	assert.GreaterOrEqual(t, pt.SocEndPercent, pt.SocStartPercent-2.0-1e-9)
	assert.GreaterOrEqual(t, pt.GridEnergyKWh, 0.0)
}

func TestChargesInCheapestSlotOnly(t *testing.T) {
	// Prices [0.10, 0.30, 0.05], average 0.15: charging pays off in slots 1
	// and 3 (below average) and never in slot 2.
	slots := hourlySlots([]float64{0.10, 0.30, 0.05})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 10, MaxChargePowerW: 1000},
		HouseLoadW: 0,
	}
	res, err := Optimize(slots, p, 0)
	require.NoError(t, err)

	require.Len(t, res.Trajectory, 3)
	// 1 kWh per slot on a 10 kWh battery = 10 SOC percent.
	assert.InDelta(t, 10.0, res.Trajectory[0].SocEndPercent-res.Trajectory[0].SocStartPercent, 1e-9)
	assert.InDelta(t, 0.0, res.Trajectory[1].SocEndPercent-res.Trajectory[1].SocStartPercent, 1e-9)
	assert.InDelta(t, 10.0, res.Trajectory[2].SocEndPercent-res.Trajectory[2].SocStartPercent, 1e-9)
	assert.InDelta(t, 20.0, res.RecommendedFinalSocPercent, 1e-9)
	assert.InDelta(t, 10.0, res.NextStepSocPercent, 1e-9)
}

func TestProjectedCostRoundTrip(t *testing.T) {
	slots := hourlySlots([]float64{0.30, 0.10, 0.45, 0.05, 0.22})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 12, MaxChargePowerW: 500},
		HouseLoadW: 1200,
	}
	res, err := Optimize(slots, p, 40)
	require.NoError(t, err)

	sum := 0.0
	for _, pt := range res.Trajectory {
		sum += pt.GridEnergyKWh * pt.PriceEURPerKWh
	}
	finalEnergy := res.RecommendedFinalSocPercent / 100.0 * p.Battery.CapacityKWh
	sum -= res.AveragePriceEURPerKWh * finalEnergy
	assert.InDelta(t, res.ProjectedCostEUR, sum, 1e-9)
}

func TestNextStepMatchesTrajectory(t *testing.T) {
	slots := hourlySlots([]float64{0.30, 0.10, 0.45})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 12, MaxChargePowerW: 500},
		HouseLoadW: 1200,
	}
	res, err := Optimize(slots, p, 40)
	require.NoError(t, err)
	assert.Equal(t, res.InitialSocPercent, res.Trajectory[0].SocStartPercent)
	assert.Equal(t, res.NextStepSocPercent, res.Trajectory[0].SocEndPercent)
	assert.Equal(t, res.RecommendedFinalSocPercent, res.Trajectory[len(res.Trajectory)-1].SocEndPercent)
}

func TestCustomTerminalValuation(t *testing.T) {
	// A zero terminal value removes any reason to hold charge: the battery
	// should discharge into house load as far as it can.
	slots := hourlySlots([]float64{0.20, 0.20, 0.20, 0.20})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 10, MaxChargePowerW: 0},
		HouseLoadW: 1000,
		Terminal:   func(avgPrice, energyKWh float64) float64 { return 0 },
	}
	res, err := Optimize(slots, p, 40)
	require.NoError(t, err)
	// 1 kWh load per slot on a 10 kWh battery: 4 slots drain 40% exactly.
	assert.InDelta(t, 0.0, res.RecommendedFinalSocPercent, 1e-9)
	assert.InDelta(t, 0.0, res.ProjectedGridEnergyKWh, 1e-9)
}

func TestPriceFloorAndCeiling(t *testing.T) {
	slots := hourlySlots([]float64{0.30, 0.10, 0.45, 0.05})
	p := Params{
		Battery:    model.BatteryProfile{CapacityKWh: 12, MaxChargePowerW: 500},
		HouseLoadW: 1200,
	}
	res, err := Optimize(slots, p, 40)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, res.PriceFloorEURPerKWh, 1e-9)
	assert.InDelta(t, 0.45, res.PriceCeilingEURPerKWh, 1e-9)
	assert.Equal(t, 4, res.ForecastSamples)
	assert.InDelta(t, 4.0, res.ForecastHours, 1e-9)
}

package model

import "errors"

// BatteryProfile defines the physical parameters of the battery for one
// optimization call. Units:
// - CapacityKWh: kWh
// - MaxChargePowerW: W (0 means the battery cannot be charged from the grid)
type BatteryProfile struct {
	CapacityKWh     float64
	MaxChargePowerW float64
}

func (p BatteryProfile) Validate() error {
	if p.CapacityKWh <= 0 {
		return errors.New("CapacityKWh must be > 0")
	}
	if p.MaxChargePowerW < 0 {
		return errors.New("MaxChargePowerW must be >= 0")
	}
	return nil
}

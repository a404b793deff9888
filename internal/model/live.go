package model

// LiveState is the current site reading supplied by the live-state provider.
// Pointer fields distinguish "not reported" from zero.
type LiveState struct {
	BatterySoc *float64 `json:"battery_soc,omitempty"`
	PVPowerW   *float64 `json:"pv_power,omitempty"`
	GridPowerW *float64 `json:"grid_power,omitempty"`
}

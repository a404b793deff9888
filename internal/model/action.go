package model

// Action is the operating mode written to the inverter for a decision.
// Keep these values stable; they are persisted in the state ledger and the
// run history.
type Action string

const (
	// ActionManual pins the battery's minimum SOC to the optimized target,
	// forcing it to charge up to (and hold) that level.
	ActionManual Action = "manual"

	// ActionAuto returns the battery to self-managed operation with a low
	// floor, letting it discharge into house load.
	ActionAuto Action = "auto"
)

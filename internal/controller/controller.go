package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"batteryctl/internal/config"
	"batteryctl/internal/forecast"
	"batteryctl/internal/logger"
	"batteryctl/internal/metrics"
	"batteryctl/internal/model"
	"batteryctl/internal/mqtt"
	"batteryctl/internal/optimizer"
	"batteryctl/internal/store"
)

// MarketSource delivers day-ahead price intervals.
type MarketSource interface {
	Forecast(ctx context.Context, maxHours float64) ([]forecast.RawSlot, error)
}

// LiveSource delivers live site readings and, optionally, a tariff forecast.
type LiveSource interface {
	State(ctx context.Context) (*forecast.EvccState, error)
	TariffForecast(ctx context.Context) ([]forecast.RawSlot, error)
}

// InverterWriter applies a battery operating mode.
type InverterWriter interface {
	SetBatteryMode(ctx context.Context, mode model.Action, targetSoc int) (map[string]any, error)
}

// RunLog persists evaluations and answers which one last touched the inverter.
type RunLog interface {
	Save(ctx context.Context, run store.Run) (string, error)
	LastApplied(ctx context.Context) (*store.Run, error)
}

// Controller ties forecast capture, planning and the inverter together.
// Market, Evcc, Inverter, Runs, Publisher and Metrics may each be nil; the
// corresponding step is then skipped.
type Controller struct {
	Cfg       *config.Config
	Battery   model.BatteryProfile
	Market    MarketSource
	Evcc      LiveSource
	Inverter  InverterWriter
	Runs      RunLog
	Publisher mqtt.Publisher
	Metrics   *metrics.Sink
	Log       zerolog.Logger

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

// New builds a controller with a default logger and clock.
func New(cfg *config.Config, battery model.BatteryProfile) *Controller {
	return &Controller{
		Cfg:     cfg,
		Battery: battery,
		Log:     logger.New("controller"),
		Now:     time.Now,
	}
}

// Evaluation is the outcome of one control cycle.
type Evaluation struct {
	EvaluatedAt time.Time         `json:"evaluated_at"`
	Action      model.Action      `json:"action"`
	TargetSoc   int               `json:"target_soc"`
	CurrentSoc  *float64          `json:"current_soc,omitempty"`
	Applied     bool              `json:"applied"`
	Reason      string            `json:"reason,omitempty"`
	Source      string            `json:"source"`
	Warnings    []string          `json:"warnings,omitempty"`
	Plan        *optimizer.Result `json:"plan"`
	Slots       []model.PriceSlot `json:"slots,omitempty"`
}

// EvaluateOnce runs a full cycle: capture the forecast, compute the plan,
// decide the mode and, unless dryRun is set, write it to the inverter. The
// run is persisted and published regardless of whether a write happened.
func (c *Controller) EvaluateOnce(ctx context.Context, dryRun bool) (*Evaluation, error) {
	now := c.now()
	eval := &Evaluation{EvaluatedAt: now}

	state := c.fetchLiveState(ctx, eval)
	raw, source := c.captureForecast(ctx, state, eval)
	eval.Source = source

	slots := forecast.Normalize(raw, c.Cfg.Price.GridFee())
	if len(slots) == 0 {
		c.Metrics.RecordEvaluation("error")
		return nil, fmt.Errorf("no usable price forecast (source %q)", source)
	}
	eval.Slots = slots

	// Without a live reading, plan from a half-full battery. Starting from
	// an extreme would skew the plan toward charging (0%) or draining
	// (100%); the write is held either way.
	socKnown := state != nil && state.Live.BatterySoc != nil
	soc := 50.0
	if socKnown {
		soc = *state.Live.BatterySoc
		eval.CurrentSoc = state.Live.BatterySoc
	} else {
		eval.Warnings = append(eval.Warnings, "live battery soc unavailable, assuming 50%")
	}

	started := time.Now()
	plan, err := optimizer.Optimize(slots, optimizer.Params{
		Battery:    c.Battery,
		HouseLoadW: c.Cfg.Logic.HouseLoadW,
		SocSteps:   c.Cfg.Logic.SocSteps,
	}, soc)
	c.Metrics.ObserveOptimizeDuration(time.Since(started))
	if err != nil {
		c.Metrics.RecordEvaluation("error")
		return nil, fmt.Errorf("optimize: %w", err)
	}
	eval.Plan = plan

	action, target := c.decide(plan, soc)
	eval.Action = action
	eval.TargetSoc = target

	outcome := c.settle(ctx, eval, dryRun, socKnown, now)

	// Dry runs leave no trace: no run record, no ledger line, no snapshot.
	if !dryRun {
		c.persist(ctx, eval, state, slots)
	}
	c.Metrics.RecordEvaluation(outcome)
	c.Metrics.RecordPlan(soc, target, plan.ProjectedCostEUR, plan.AveragePriceEURPerKWh)

	c.Log.Info().
		Str("action", string(action)).
		Int("target_soc", target).
		Bool("applied", eval.Applied).
		Str("reason", eval.Reason).
		Float64("projected_cost_eur", plan.ProjectedCostEUR).
		Str("source", source).
		Msg("evaluation complete")

	return eval, nil
}

// decide maps the plan onto an inverter mode. Charging is only worth a
// manual floor when the plan wants the next step visibly above the current
// SOC; otherwise the battery runs in auto mode at the configured floor.
func (c *Controller) decide(plan *optimizer.Result, soc float64) (model.Action, int) {
	if plan.NextStepSocPercent > soc+0.5 {
		return model.ActionManual, int(math.Round(plan.NextStepSocPercent))
	}
	return model.ActionAuto, c.Cfg.Battery.AutoModeFloorSoc
}

// settle decides whether the mode is written out and performs the write.
// It returns the metrics outcome label.
func (c *Controller) settle(ctx context.Context, eval *Evaluation, dryRun, socKnown bool, now time.Time) string {
	if dryRun {
		eval.Reason = "dry run, no inverter write"
		return "dry_run"
	}
	if !socKnown {
		eval.Reason = "held: live soc unavailable"
		return "held"
	}
	if c.Inverter == nil {
		eval.Reason = "no inverter configured"
		return "skipped"
	}

	if c.Runs != nil {
		last, err := c.Runs.LastApplied(ctx)
		if err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("load last applied run: %v", err))
		}
		if last != nil {
			unchanged := last.Action == eval.Action &&
				(eval.Action == model.ActionAuto || last.TargetSoc == eval.TargetSoc)
			if unchanged {
				eval.Reason = "skipped: mode unchanged"
				return "skipped"
			}
			if held := now.Sub(last.EvaluatedAt); held < c.Cfg.Logic.MinHold() {
				eval.Reason = fmt.Sprintf("held: last write %s ago, minimum hold %s",
					held.Round(time.Second), c.Cfg.Logic.MinHold())
				return "held"
			}
		}
	}

	if _, err := c.Inverter.SetBatteryMode(ctx, eval.Action, eval.TargetSoc); err != nil {
		eval.Reason = fmt.Sprintf("inverter write failed: %v", err)
		c.Log.Error().Err(err).Str("action", string(eval.Action)).Msg("inverter write failed")
		return "error"
	}
	eval.Applied = true
	eval.Reason = "applied"
	return "applied"
}

// fetchLiveState pulls the evcc state when evcc is enabled. Failures
// degrade to a warning so a flaky evcc does not stop planning.
func (c *Controller) fetchLiveState(ctx context.Context, eval *Evaluation) *forecast.EvccState {
	if !c.Cfg.Evcc.Enabled || c.Evcc == nil {
		return nil
	}
	state, err := c.Evcc.State(ctx)
	if err != nil {
		eval.Warnings = append(eval.Warnings, fmt.Sprintf("evcc state: %v", err))
		return nil
	}
	return state
}

// captureForecast picks the price source. With prefer_market set (the
// default), the market feed wins and evcc only fills in when it fails;
// otherwise the order flips.
func (c *Controller) captureForecast(ctx context.Context, state *forecast.EvccState, eval *Evaluation) ([]forecast.RawSlot, string) {
	marketEnabled := c.Cfg.MarketData.IsEnabled() && c.Market != nil

	if marketEnabled && c.Cfg.MarketData.PrefersMarket() {
		if raw := c.marketForecast(ctx, eval); len(raw) > 0 {
			return raw, c.Cfg.MarketData.SourceLabel
		}
		if raw := c.evccForecast(ctx, state, eval); len(raw) > 0 {
			return raw, "evcc"
		}
		return nil, c.Cfg.MarketData.SourceLabel
	}

	if raw := c.evccForecast(ctx, state, eval); len(raw) > 0 {
		return raw, "evcc"
	}
	if marketEnabled {
		if raw := c.marketForecast(ctx, eval); len(raw) > 0 {
			return raw, c.Cfg.MarketData.SourceLabel
		}
	}
	return nil, "none"
}

func (c *Controller) marketForecast(ctx context.Context, eval *Evaluation) []forecast.RawSlot {
	raw, err := c.Market.Forecast(ctx, float64(c.Cfg.MarketData.MaxHours))
	if err != nil {
		eval.Warnings = append(eval.Warnings, fmt.Sprintf("market forecast: %v", err))
		return nil
	}
	if len(raw) == 0 {
		eval.Warnings = append(eval.Warnings, "market forecast returned no slots")
	}
	return raw
}

func (c *Controller) evccForecast(ctx context.Context, state *forecast.EvccState, eval *Evaluation) []forecast.RawSlot {
	if state != nil && len(state.Forecast) > 0 {
		return state.Forecast
	}
	if !c.Cfg.Evcc.Enabled || c.Evcc == nil {
		return nil
	}
	raw, err := c.Evcc.TariffForecast(ctx)
	if err != nil {
		eval.Warnings = append(eval.Warnings, fmt.Sprintf("evcc tariff forecast: %v", err))
		return nil
	}
	return raw
}

// persist writes the run record, the CSV ledger line, the public snapshot
// and the MQTT message. All of these are best-effort; failures become
// warnings on the evaluation.
func (c *Controller) persist(ctx context.Context, eval *Evaluation, state *forecast.EvccState, slots []model.PriceSlot) {
	price := slots[0].Price
	if p := forecast.CurrentPrice(state); p != nil {
		price = *p
	}

	if c.Runs != nil {
		resultJSON, err := json.Marshal(eval.Plan)
		if err != nil {
			resultJSON = nil
		}
		if _, err := c.Runs.Save(ctx, store.Run{
			EvaluatedAt:   eval.EvaluatedAt,
			Action:        eval.Action,
			TargetSoc:     eval.TargetSoc,
			CurrentSoc:    eval.CurrentSoc,
			Applied:       eval.Applied,
			Reason:        eval.Reason,
			ProjectedCost: eval.Plan.ProjectedCostEUR,
			AveragePrice:  eval.Plan.AveragePriceEURPerKWh,
			ForecastHours: eval.Plan.ForecastHours,
			Source:        eval.Source,
			ResultJSON:    string(resultJSON),
		}); err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("save run: %v", err))
		}
	}

	if c.Cfg.State.Path != "" {
		if err := store.AppendStateRecord(c.Cfg.State.Path, store.StateRecord{
			Timestamp:     eval.EvaluatedAt,
			Action:        eval.Action,
			TargetSoc:     eval.TargetSoc,
			Reason:        eval.Reason,
			PriceSnapshot: price,
			Soc:           eval.CurrentSoc,
			Applied:       eval.Applied,
		}); err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("append ledger: %v", err))
		}
	}

	if c.Cfg.Public.SnapshotPath != "" {
		if err := store.WriteSnapshot(c.Cfg.Public.SnapshotPath, eval); err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("write snapshot: %v", err))
		}
	}

	if c.Publisher != nil {
		if err := c.Publisher.PublishPlan(mqtt.PlanMessage{
			EvaluatedAt:   eval.EvaluatedAt,
			Action:        eval.Action,
			TargetSoc:     eval.TargetSoc,
			CurrentSoc:    eval.CurrentSoc,
			Applied:       eval.Applied,
			Reason:        eval.Reason,
			ProjectedCost: eval.Plan.ProjectedCostEUR,
			AveragePrice:  eval.Plan.AveragePriceEURPerKWh,
		}); err != nil {
			eval.Warnings = append(eval.Warnings, fmt.Sprintf("publish plan: %v", err))
		}
	}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

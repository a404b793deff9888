package controller

import (
	"context"
	"time"
)

const minLoopInterval = 60 * time.Second

// Run evaluates in a loop until ctx is cancelled. Cycles are aligned to
// wall-clock multiples of the configured interval, so a 15 minute interval
// fires at :00, :15, :30 and :45 regardless of when the process started.
func (c *Controller) Run(ctx context.Context) error {
	interval := c.Cfg.Logic.Interval()
	if interval < minLoopInterval {
		interval = minLoopInterval
	}

	for {
		if _, err := c.EvaluateOnce(ctx, false); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Error().Err(err).Msg("evaluation failed, retrying next cycle")
		}

		timer := time.NewTimer(untilNextTick(c.now(), interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// untilNextTick returns the wait until the next wall-clock multiple of
// interval, never less than a second to avoid double-firing on boundaries.
func untilNextTick(now time.Time, interval time.Duration) time.Duration {
	elapsed := time.Duration(now.UnixNano()) % interval
	wait := interval - elapsed
	if wait < time.Second {
		wait += interval
	}
	return wait
}

package loading

import (
	"context"
	"time"
)

// =============================================================================
// PROGRESS ANIMATION DRIVER
// =============================================================================
//
// Progress is decorative and time-based: it climbs smoothly with elapsed
// time against the expected total (conditions x minimum step display), so
// the UI never looks stalled while one slow condition is being awaited. It
// is deliberately NOT derived from how many conditions have completed.
// Completion forces the value to exactly 100 regardless of the animation's
// last computed value.

// animate drives the progress value on a fixed tick until it reaches 100,
// the run finishes, or the run context is cancelled. The ticker is always
// stopped on exit; nothing fires after teardown.
func (o *Orchestrator) animate(ctx context.Context, gen uint64, start time.Time) {
	defer o.wg.Done()

	totalExpected := time.Duration(len(o.opts.Conditions)) * o.opts.MinStepDisplay
	if totalExpected <= 0 {
		// Nothing to animate; completion will force 100.
		return
	}

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pct := float64(now.Sub(start)) / float64(totalExpected) * 100
			if !o.setProgress(gen, pct) {
				return
			}
		}
	}
}

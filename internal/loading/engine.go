package loading

import (
	"context"
	"time"

	"fumo/internal/logging"
)

// =============================================================================
// CONDITION ENGINE - SEQUENTIAL READINESS CHECKS
// =============================================================================
//
// The engine runs the fixed condition list to completion, strictly in order:
// condition N+1 is not started until condition N has settled (result, error,
// panic, or timeout) and its minimum-display floor has elapsed. No settle
// outcome is fatal; the loading gate is a best-effort UX aid, not a
// correctness barrier.

// runEngine processes the condition list for one run generation.
func (o *Orchestrator) runEngine(ctx context.Context, gen uint64) {
	defer o.wg.Done()

	conds := o.opts.Conditions
	if len(conds) == 0 {
		// Empty list: complete immediately with progress 100 and no steps.
		o.finish(gen, false)
		return
	}

	for i, cond := range conds {
		if ctx.Err() != nil {
			return
		}
		if !o.beginStep(gen, i, cond.DisplayName) {
			return
		}

		stepStart := time.Now()
		satisfied := o.awaitCondition(ctx, cond)

		// Enforce the minimum visible time for this step, measured from
		// when the step started. Fast checks wait out the remainder.
		if rem := o.opts.MinStepDisplay - time.Since(stepStart); rem > 0 {
			timer := time.NewTimer(rem)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		if !o.completeStep(gen, i, satisfied, time.Since(stepStart)) {
			return
		}
	}

	o.finish(gen, false)
}

// awaitCondition races the condition's check against its timeout. A timeout
// does not interrupt the check mid-flight; the check keeps the run context
// and its eventual result is discarded. Errors and panics are absorbed and
// treated like a timeout: the step is forced through, never fatal.
func (o *Orchestrator) awaitCondition(ctx context.Context, cond Condition) bool {
	timeout := cond.Timeout
	if timeout <= 0 {
		timeout = o.opts.DefaultTimeout
	}

	resultCh := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Get(logging.CategoryLoading).Error("condition %s panicked: %v", cond.ID, r)
				resultCh <- false
			}
		}()
		ok, err := cond.Check(ctx)
		if err != nil {
			logging.Get(logging.CategoryLoading).Warn("condition %s check failed: %v", cond.ID, err)
			resultCh <- false
			return
		}
		resultCh <- ok
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-resultCh:
		logging.LoadingDebug("condition %s settled: satisfied=%v", cond.ID, ok)
		return ok
	case <-timer.C:
		logging.Get(logging.CategoryLoading).Warn("condition %s timed out after %v, forcing through", cond.ID, timeout)
		return false
	case <-ctx.Done():
		return false
	}
}

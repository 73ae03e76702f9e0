// Package loading implements the application-loading orchestrator: an ordered
// sequence of named readiness conditions executed one at a time with
// per-condition timeouts, a minimum visible duration per step, a time-based
// progress animation, and a combined "anything still loading" signal that ORs
// the sequence state with an externally-driven suspense flag.
//
// The package is split across files:
//   - condition.go: Condition/Step/Snapshot types
//   - orchestrator.go: the single-writer state container and control surface
//   - engine.go: the sequential condition engine
//   - progress.go: the progress animation driver
//   - context.go: context plumbing for consumers
package loading

import (
	"context"
	"time"
)

// ReadyLabel is the terminal step label published once a run completes.
const ReadyLabel = "Ready"

// CheckFunc is a readiness predicate. It answers "has this condition been
// satisfied right now" and may block until the supplied context is done.
// Checks must be read-only: a check that outlives its step's timeout keeps
// running and its result is discarded, so side effects would land after the
// sequence has moved on.
type CheckFunc func(ctx context.Context) (bool, error)

// Condition is a named readiness check, run in list order.
type Condition struct {
	// ID is a stable identifier, unique within the ordered list.
	ID string

	// DisplayName is the human-readable label shown while the condition
	// is being awaited.
	DisplayName string

	// Priority is an ordering/severity weight (lower = more important).
	// Informational only: execution order is list order, always.
	Priority int

	// Check is the readiness predicate.
	Check CheckFunc

	// Timeout bounds how long Check may take before the step is forced
	// through. Zero means "use the orchestrator's default timeout".
	Timeout time.Duration
}

// Step is the per-condition execution record, derived 1:1 from a Condition
// at run start.
type Step struct {
	ID          string
	DisplayName string
	Priority    int

	// Completed is true once the condition has settled, whether the check
	// returned true, returned false, errored, panicked, or timed out.
	Completed bool

	// Satisfied distinguishes a check that actually reported readiness
	// from one that was forced through on timeout/error/false.
	Satisfied bool

	// Elapsed is how long the step was visible (check settle time plus
	// any minimum-display remainder).
	Elapsed time.Duration
}

// Snapshot is a point-in-time read of the orchestrator state. Reads never
// fail; the returned value is a copy and safe to retain.
type Snapshot struct {
	// RunID identifies the run this snapshot belongs to. Each Start and
	// Restart mints a fresh ID.
	RunID string

	// SequenceRunning is true from run start until every condition has
	// been processed (or the run was force-completed).
	SequenceRunning bool

	// Progress is the animated 0-100 estimate. It is time-based, not
	// condition-count-based, and monotonically non-decreasing within a
	// run. Exactly 100 once the sequence finishes.
	Progress float64

	// CurrentStep is the display name of the condition currently being
	// awaited, or ReadyLabel once done.
	CurrentStep string

	// Steps mirrors the condition list, in order.
	Steps []Step

	// SuspenseActive is the externally-driven lazy-content flag.
	SuspenseActive bool

	// OverallLoading is the sole authoritative "still show a loading UI"
	// signal: SequenceRunning OR SuspenseActive.
	OverallLoading bool
}

// Result summarizes a finished run for observers (e.g. the run-history
// store).
type Result struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Steps    []Step

	// Forced is true when the run ended via ForceComplete rather than by
	// processing every condition.
	Forced bool
}

package loading

import (
	"context"
	"sync"
	"time"

	"fumo/internal/logging"

	"github.com/google/uuid"
)

// =============================================================================
// ORCHESTRATOR - SINGLE-WRITER LOADING STATE
// =============================================================================
//
// The Orchestrator owns all loading state. Consumers read snapshots or
// subscribe to a channel; only the orchestrator's own goroutines and control
// methods mutate state, always under the mutex. There is exactly one writer
// discipline even though the engine and the progress animator run
// concurrently: every mutation goes through a generation-checked helper, so
// timers belonging to a superseded run can never touch the state of the run
// that replaced it.

// Options configures an Orchestrator.
type Options struct {
	// Conditions is the ordered readiness sequence. Fixed for the
	// lifetime of the orchestrator; Restart reruns the same list.
	Conditions []Condition

	// DefaultTimeout applies to conditions that omit their own Timeout.
	DefaultTimeout time.Duration

	// MinStepDisplay is the floor duration each step stays visible,
	// regardless of how fast its check resolves. Prevents flicker for
	// near-instant checks.
	MinStepDisplay time.Duration

	// TickInterval is the progress animation cadence.
	TickInterval time.Duration

	// OnRunComplete, if set, is invoked once per finished run (natural or
	// forced), outside the orchestrator lock.
	OnRunComplete func(Result)
}

// Default durations, matching the canonical four-condition configuration.
const (
	DefaultCheckTimeout   = 2000 * time.Millisecond
	DefaultMinStepDisplay = 1200 * time.Millisecond
	DefaultTickInterval   = 16 * time.Millisecond
)

// DefaultOptions returns Options with the standard timing values and no
// conditions.
func DefaultOptions() Options {
	return Options{
		DefaultTimeout: DefaultCheckTimeout,
		MinStepDisplay: DefaultMinStepDisplay,
		TickInterval:   DefaultTickInterval,
	}
}

// Orchestrator sequences readiness conditions and publishes loading state.
type Orchestrator struct {
	opts Options

	mu         sync.RWMutex
	generation uint64 // bumped on Restart/Close; stale-run guard
	runID      string
	running    bool // sequenceRunning
	progress   float64
	current    string
	steps      []Step
	suspense   bool
	startedAt  time.Time
	started    bool
	closed     bool

	runCancel context.CancelFunc
	wg        sync.WaitGroup

	subs      map[int]chan Snapshot
	nextSubID int
}

// New creates an Orchestrator. Call Start to begin the condition sequence.
func New(opts Options) *Orchestrator {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultCheckTimeout
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.MinStepDisplay < 0 {
		opts.MinStepDisplay = 0
	}
	return &Orchestrator{
		opts: opts,
		subs: make(map[int]chan Snapshot),
	}
}

// Start begins the condition sequence. Non-blocking; the engine and the
// progress animator run in their own goroutines until the run finishes or
// ctx is cancelled. Starting an already-started orchestrator is a no-op;
// use Restart to rerun.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.closed || o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.beginRunLocked(ctx)
	o.mu.Unlock()
}

// Restart resets all state to initial values and begins a new run from the
// first condition. Pending timers and checks from the old run become inert:
// they belong to a superseded generation and cannot mutate the new run.
func (o *Orchestrator) Restart(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	o.started = true
	o.beginRunLocked(ctx)
	o.mu.Unlock()
}

// beginRunLocked resets run state and spawns the engine and animator.
// Caller holds o.mu.
func (o *Orchestrator) beginRunLocked(ctx context.Context) {
	o.generation++
	gen := o.generation
	o.runID = uuid.NewString()
	o.running = true
	o.progress = 0
	o.current = ""
	o.suspense = false
	o.startedAt = time.Now()
	o.steps = make([]Step, len(o.opts.Conditions))
	for i, c := range o.opts.Conditions {
		o.steps[i] = Step{ID: c.ID, DisplayName: c.DisplayName, Priority: c.Priority}
	}
	o.publishLocked()

	runCtx, cancel := context.WithCancel(ctx)
	o.runCancel = cancel

	logging.Loading("run %s started: %d conditions, min step display %v",
		o.runID, len(o.opts.Conditions), o.opts.MinStepDisplay)

	o.wg.Add(2)
	go o.runEngine(runCtx, gen)
	go o.animate(runCtx, gen, o.startedAt)
}

// ForceComplete immediately ends the sequence: SequenceRunning becomes
// false, Progress 100, CurrentStep the terminal label. Conditions still in
// flight are not interrupted mid-check; their results are discarded when
// they settle. Remaining steps keep whatever completion state they had.
func (o *Orchestrator) ForceComplete() {
	o.finish(o.currentGeneration(), true)
}

// SetSuspenseLoading sets the externally-driven suspense flag. The flag is
// last-write-wins: the orchestrator stores only the latest boolean and does
// no reference counting, so independent lazy subtrees must pair their
// set-true/set-false calls symmetrically. See the package documentation for
// this known limitation.
func (o *Orchestrator) SetSuspenseLoading(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.suspense == active {
		return
	}
	o.suspense = active
	o.publishLocked()
}

// Snapshot returns a copy of the current state. Never fails.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

// OverallLoading reports whether anything is still loading: the condition
// sequence OR the suspense flag.
func (o *Orchestrator) OverallLoading() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running || o.suspense
}

// Subscribe registers a snapshot channel. The channel is primed with the
// current state and then receives every subsequent change, latest-wins: a
// slow reader only ever misses intermediate snapshots, never the newest.
// The returned cancel function unregisters the subscription and closes the
// channel.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSubID
	o.nextSubID++
	o.subs[id] = ch
	ch <- o.snapshotLocked()

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close tears the orchestrator down: cancels the current run, waits for the
// engine and animator goroutines to exit, and closes all subscriber
// channels. No callback fires after Close returns.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.generation++
	if o.runCancel != nil {
		o.runCancel()
		o.runCancel = nil
	}
	o.mu.Unlock()

	o.wg.Wait()

	o.mu.Lock()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	o.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Generation-checked mutation helpers
// -----------------------------------------------------------------------------

func (o *Orchestrator) currentGeneration() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.generation
}

// beginStep publishes the step label being awaited. Returns false when the
// run has been superseded or already finished.
func (o *Orchestrator) beginStep(gen uint64, index int, label string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || !o.running || o.closed {
		return false
	}
	o.current = label
	o.publishLocked()
	return true
}

// completeStep records a settled condition. Every settle outcome marks the
// step completed; only a true check result marks it satisfied.
func (o *Orchestrator) completeStep(gen uint64, index int, satisfied bool, elapsed time.Duration) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || !o.running || o.closed || index >= len(o.steps) {
		return false
	}
	o.steps[index].Completed = true
	o.steps[index].Satisfied = satisfied
	o.steps[index].Elapsed = elapsed
	o.publishLocked()
	return true
}

// setProgress applies an animated progress value, clamped monotonic.
// Returns false when the animator should stop.
func (o *Orchestrator) setProgress(gen uint64, pct float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || !o.running || o.closed {
		return false
	}
	if pct > 100 {
		pct = 100
	}
	if pct > o.progress {
		o.progress = pct
		o.publishLocked()
	}
	return o.progress < 100
}

// finish ends the run and notifies OnRunComplete. Safe to call from the
// engine (natural completion) and from ForceComplete.
func (o *Orchestrator) finish(gen uint64, forced bool) {
	o.mu.Lock()
	if gen != o.generation || !o.running || o.closed {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.progress = 100
	o.current = ReadyLabel
	if o.runCancel != nil {
		// Stops the animator; in-flight checks settle into no-ops.
		o.runCancel()
		o.runCancel = nil
	}
	result := Result{
		RunID:    o.runID,
		Started:  o.startedAt,
		Duration: time.Since(o.startedAt),
		Steps:    append([]Step(nil), o.steps...),
		Forced:   forced,
	}
	o.publishLocked()
	onComplete := o.opts.OnRunComplete
	o.mu.Unlock()

	logging.Loading("run %s finished in %v (forced=%v)", result.RunID, result.Duration, forced)
	if onComplete != nil {
		onComplete(result)
	}
}

// -----------------------------------------------------------------------------
// Snapshot / publish
// -----------------------------------------------------------------------------

// snapshotLocked builds a copy of the current state. Caller holds o.mu.
func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		RunID:           o.runID,
		SequenceRunning: o.running,
		Progress:        o.progress,
		CurrentStep:     o.current,
		Steps:           append([]Step(nil), o.steps...),
		SuspenseActive:  o.suspense,
		OverallLoading:  o.running || o.suspense,
	}
}

// publishLocked delivers the current snapshot to every subscriber,
// latest-wins. Caller holds o.mu.
func (o *Orchestrator) publishLocked() {
	if o.closed {
		return
	}
	snap := o.snapshotLocked()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale buffered snapshot and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

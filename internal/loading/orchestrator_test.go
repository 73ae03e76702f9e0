package loading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// instantCheck resolves immediately with the given result.
func instantCheck(ok bool) CheckFunc {
	return func(ctx context.Context) (bool, error) {
		return ok, nil
	}
}

// blockingCheck never resolves until the run context is torn down.
func blockingCheck() CheckFunc {
	return func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}
}

// waitForDone blocks until the sequence stops running, or fails the test.
func waitForDone(t *testing.T, o *Orchestrator, within time.Duration) Snapshot {
	t.Helper()
	ch, cancel := o.Subscribe()
	defer cancel()
	deadline := time.After(within)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("subscription closed before sequence finished")
			}
			if !snap.SequenceRunning {
				return snap
			}
		case <-deadline:
			t.Fatalf("sequence still running after %v: %+v", within, o.Snapshot())
		}
	}
}

func testOptions(conds ...Condition) Options {
	opts := DefaultOptions()
	opts.Conditions = conds
	opts.DefaultTimeout = 100 * time.Millisecond
	opts.MinStepDisplay = 30 * time.Millisecond
	opts.TickInterval = 5 * time.Millisecond
	return opts
}

func TestOrchestrator_SequentialExecution(t *testing.T) {
	var mu sync.Mutex
	var starts []string
	var startTimes []time.Time
	record := func(id string) CheckFunc {
		return func(ctx context.Context) (bool, error) {
			mu.Lock()
			starts = append(starts, id)
			startTimes = append(startTimes, time.Now())
			mu.Unlock()
			return true, nil
		}
	}

	o := New(testOptions(
		Condition{ID: "a", DisplayName: "A", Check: record("a")},
		Condition{ID: "b", DisplayName: "B", Check: record("b")},
		Condition{ID: "c", DisplayName: "C", Check: record("c")},
	))
	defer o.Close()

	o.Start(context.Background())
	waitForDone(t, o, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b", "c"}, starts)
	// Even instant checks hold the minimum-display floor before the next
	// condition may begin. Allow a few ms of goroutine-spawn skew between
	// the step clock and the check's own timestamp.
	for i := 1; i < len(startTimes); i++ {
		gap := startTimes[i].Sub(startTimes[i-1])
		assert.GreaterOrEqual(t, gap, 25*time.Millisecond,
			"condition %d began %v after %d, before the display floor elapsed", i, gap, i-1)
	}
}

func TestOrchestrator_CompletionRegardlessOfOutcome(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "ok", DisplayName: "OK", Check: instantCheck(true)},
		Condition{ID: "false", DisplayName: "False", Check: instantCheck(false)},
		Condition{ID: "err", DisplayName: "Err", Check: func(ctx context.Context) (bool, error) {
			return false, errors.New("probe exploded")
		}},
		Condition{ID: "panic", DisplayName: "Panic", Check: func(ctx context.Context) (bool, error) {
			panic("probe panicked")
		}},
		Condition{ID: "hang", DisplayName: "Hang", Check: blockingCheck(), Timeout: 50 * time.Millisecond},
	))
	defer o.Close()

	o.Start(context.Background())
	snap := waitForDone(t, o, 3*time.Second)

	require.Len(t, snap.Steps, 5)
	for _, step := range snap.Steps {
		assert.True(t, step.Completed, "step %s not completed", step.ID)
	}
	assert.True(t, snap.Steps[0].Satisfied)
	assert.False(t, snap.Steps[1].Satisfied)
	assert.False(t, snap.Steps[2].Satisfied)
	assert.False(t, snap.Steps[3].Satisfied)
	assert.False(t, snap.Steps[4].Satisfied)
	assert.Equal(t, ReadyLabel, snap.CurrentStep)
	assert.Equal(t, float64(100), snap.Progress)
}

func TestOrchestrator_ProgressMonotonic(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "a", DisplayName: "A", Check: instantCheck(true)},
		Condition{ID: "b", DisplayName: "B", Check: instantCheck(true)},
	))
	defer o.Close()

	ch, cancel := o.Subscribe()
	defer cancel()

	o.Start(context.Background())

	var last float64
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			require.GreaterOrEqual(t, snap.Progress, last, "progress decreased")
			last = snap.Progress
			if !snap.SequenceRunning {
				assert.Equal(t, float64(100), snap.Progress)
				return
			}
		case <-deadline:
			t.Fatal("sequence did not finish")
		}
	}
}

func TestOrchestrator_RestartIsolation(t *testing.T) {
	opts := testOptions(
		Condition{ID: "slow", DisplayName: "Slow", Check: blockingCheck(), Timeout: 150 * time.Millisecond},
		Condition{ID: "fast", DisplayName: "Fast", Check: instantCheck(true)},
	)
	opts.MinStepDisplay = 100 * time.Millisecond
	o := New(opts)
	defer o.Close()

	o.Start(context.Background())
	first := o.Snapshot().RunID
	require.NotEmpty(t, first)

	// Restart mid-run, while the first condition is still being awaited.
	time.Sleep(20 * time.Millisecond)
	o.Restart(context.Background())

	fresh := o.Snapshot()
	assert.NotEqual(t, first, fresh.RunID)
	assert.True(t, fresh.SequenceRunning)
	assert.Less(t, fresh.Progress, 50.0, "restart did not reset progress")
	require.Len(t, fresh.Steps, 2)
	for _, step := range fresh.Steps {
		assert.False(t, step.Completed, "restart did not reset step %s", step.ID)
	}

	snap := waitForDone(t, o, 3*time.Second)
	assert.Equal(t, fresh.RunID, snap.RunID, "old run mutated state belonging to the new run")
	for _, step := range snap.Steps {
		assert.True(t, step.Completed)
	}
}

func TestOrchestrator_ForceComplete(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "hang", DisplayName: "Hang", Check: blockingCheck(), Timeout: 10 * time.Second},
	))
	defer o.Close()

	o.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	o.ForceComplete()

	snap := o.Snapshot()
	assert.False(t, snap.SequenceRunning)
	assert.Equal(t, float64(100), snap.Progress)
	assert.Equal(t, ReadyLabel, snap.CurrentStep)
	assert.False(t, snap.OverallLoading)
}

func TestOrchestrator_SuspenseORCombination(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "a", DisplayName: "A", Check: instantCheck(true)},
	))
	defer o.Close()

	o.Start(context.Background())
	o.SetSuspenseLoading(true)

	// Sequence completes while suspense is still active: overall loading
	// must remain true.
	snap := waitForDone(t, o, 2*time.Second)
	if !snap.SuspenseActive {
		// The suspense write may have landed before the final publish;
		// re-read the authoritative state either way.
		snap = o.Snapshot()
	}
	assert.False(t, snap.SequenceRunning)
	assert.True(t, snap.SuspenseActive)
	assert.True(t, snap.OverallLoading)
	assert.True(t, o.OverallLoading())

	o.SetSuspenseLoading(false)
	assert.False(t, o.OverallLoading())
}

func TestOrchestrator_TimeoutFallback(t *testing.T) {
	opts := testOptions(
		Condition{ID: "hang", DisplayName: "Hang", Check: blockingCheck(), Timeout: 60 * time.Millisecond},
	)
	opts.MinStepDisplay = 20 * time.Millisecond
	o := New(opts)
	defer o.Close()

	start := time.Now()
	o.Start(context.Background())
	snap := waitForDone(t, o, 2*time.Second)
	elapsed := time.Since(start)

	require.Len(t, snap.Steps, 1)
	assert.True(t, snap.Steps[0].Completed)
	assert.False(t, snap.Steps[0].Satisfied)
	// Completed no later than timeout plus the display floor, with
	// generous scheduling slack.
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestOrchestrator_MinimumTotalDuration(t *testing.T) {
	// Four instantly-resolving conditions with a 50ms display floor: the
	// full run cannot finish before 4 x 50ms.
	opts := testOptions(
		Condition{ID: "a", DisplayName: "A", Check: instantCheck(true)},
		Condition{ID: "b", DisplayName: "B", Check: instantCheck(true)},
		Condition{ID: "c", DisplayName: "C", Check: instantCheck(true)},
		Condition{ID: "d", DisplayName: "D", Check: instantCheck(true)},
	)
	opts.MinStepDisplay = 50 * time.Millisecond
	o := New(opts)
	defer o.Close()

	start := time.Now()
	o.Start(context.Background())
	snap := waitForDone(t, o, 3*time.Second)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Equal(t, float64(100), snap.Progress)
	require.Len(t, snap.Steps, 4)
	for _, step := range snap.Steps {
		assert.True(t, step.Completed)
		assert.True(t, step.Satisfied)
	}
}

func TestOrchestrator_EmptyConditionList(t *testing.T) {
	o := New(testOptions())
	defer o.Close()

	o.Start(context.Background())
	snap := waitForDone(t, o, time.Second)

	assert.Empty(t, snap.Steps)
	assert.Equal(t, float64(100), snap.Progress)
	assert.Equal(t, ReadyLabel, snap.CurrentStep)
}

func TestOrchestrator_StartIdempotent(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "a", DisplayName: "A", Check: instantCheck(true)},
	))
	defer o.Close()

	o.Start(context.Background())
	first := o.Snapshot().RunID
	o.Start(context.Background())
	assert.Equal(t, first, o.Snapshot().RunID, "second Start began a new run")

	waitForDone(t, o, 2*time.Second)
}

func TestOrchestrator_CloseBeforeFinish(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "hang", DisplayName: "Hang", Check: blockingCheck(), Timeout: 10 * time.Second},
	))

	o.Start(context.Background())
	time.Sleep(10 * time.Millisecond)

	// Close must tear down the engine, the animator, and all in-flight
	// timers; goleak (TestMain) verifies nothing is left behind.
	o.Close()

	// Subscriptions taken after Close come back closed.
	ch, cancel := o.Subscribe()
	defer cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestOrchestrator_SubscribeLatestWins(t *testing.T) {
	o := New(testOptions(
		Condition{ID: "a", DisplayName: "A", Check: instantCheck(true)},
		Condition{ID: "b", DisplayName: "B", Check: instantCheck(true)},
	))
	defer o.Close()

	ch, cancel := o.Subscribe()
	defer cancel()

	o.Start(context.Background())
	waitForDone(t, o, 2*time.Second)

	// Drain without having read during the run: the buffered channel must
	// hold a recent snapshot, not block, and the final state must be
	// reachable.
	var last Snapshot
	for {
		select {
		case snap := <-ch:
			last = snap
			continue
		default:
		}
		break
	}
	if last.SequenceRunning {
		last = o.Snapshot()
	}
	assert.False(t, last.SequenceRunning)
}

package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingTarget captures invocation start times.
type recordingTarget struct {
	mu     sync.Mutex
	starts []time.Time
	delay  time.Duration
	err    error
}

func (r *recordingTarget) target(ctx context.Context) error {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	n := len(r.starts)
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.err != nil && n >= 3 {
		return r.err
	}
	return nil
}

func (r *recordingTarget) startTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	cpy := make([]time.Time, len(r.starts))
	copy(cpy, r.starts)
	return cpy
}

func TestNewRunAtInterval_Validation(t *testing.T) {
	if _, err := NewRunAtInterval(Config{Name: "x"}, time.Second); !errors.Is(err, ErrNilTarget) {
		t.Errorf("nil target: error = %v, want ErrNilTarget", err)
	}

	noop := func(context.Context) error { return nil }
	if _, err := NewRunAtInterval(Config{Name: "x", Target: noop}, -time.Second); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("negative interval: error = %v, want ErrInvalidInterval", err)
	}
}

func TestRunAtInterval_SpacingFromRunStart(t *testing.T) {
	rec := &recordingTarget{}
	interval := 100 * time.Millisecond

	task, err := NewRunAtInterval(Config{Name: "spacing", Target: rec.target}, interval)
	if err != nil {
		t.Fatalf("NewRunAtInterval() error = %v", err)
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// An instantaneous target at 100ms spacing invokes three times within
	// roughly 200-300ms.
	time.Sleep(250 * time.Millisecond)
	task.Terminate()
	joinWithin(t, task.RunOnce, time.Second)

	starts := rec.startTimes()
	if len(starts) < 3 {
		t.Fatalf("target invoked %d times in 250ms at 100ms interval, want >= 3", len(starts))
	}
	for i := 1; i < 3; i++ {
		spacing := starts[i].Sub(starts[i-1])
		if spacing < 90*time.Millisecond || spacing > 140*time.Millisecond {
			t.Errorf("spacing[%d] = %v, want ~100ms", i, spacing)
		}
	}
	if task.Err() != nil {
		t.Errorf("Err() = %v, want nil", task.Err())
	}
}

func TestRunAtInterval_SlowTargetNoBurst(t *testing.T) {
	// A 200ms target at a 100ms interval: each run overshoots the
	// interval, so the next run starts immediately. Spacing tracks the
	// run duration, never collapsing into a catch-up burst.
	rec := &recordingTarget{delay: 200 * time.Millisecond}

	task, err := NewRunAtInterval(Config{Name: "slow", Target: rec.target}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRunAtInterval() error = %v", err)
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	task.Terminate()
	joinWithin(t, task.RunOnce, time.Second)

	starts := rec.startTimes()
	if len(starts) < 2 {
		t.Fatalf("target invoked %d times, want >= 2", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		spacing := starts[i].Sub(starts[i-1])
		if spacing < 190*time.Millisecond || spacing > 260*time.Millisecond {
			t.Errorf("spacing[%d] = %v, want ~200ms (run duration, no burst)", i, spacing)
		}
	}
}

func TestRunAtInterval_TerminateInterruptsWait(t *testing.T) {
	rec := &recordingTarget{}

	// A long interval: after the first instantaneous run the loop sits in
	// the inter-run wait. Terminate must cut that wait short.
	task, err := NewRunAtInterval(Config{Name: "waiting", Target: rec.target}, time.Hour)
	if err != nil {
		t.Fatalf("NewRunAtInterval() error = %v", err)
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond) // let the first run happen

	start := time.Now()
	task.Terminate()
	joinWithin(t, task.RunOnce, 100*time.Millisecond)

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Terminate+Join took %v during inter-run wait, want near-zero", elapsed)
	}
	if task.State() != StateTerminated {
		t.Errorf("State() = %s, want terminated", task.State())
	}
	if got := len(rec.startTimes()); got != 1 {
		t.Errorf("target invoked %d times, want 1", got)
	}
}

func TestRunAtInterval_TargetErrorEndsLoop(t *testing.T) {
	boom := errors.New("third run fails")
	rec := &recordingTarget{err: boom}

	task, err := NewRunAtInterval(Config{Name: "fail-3rd", Target: rec.target}, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewRunAtInterval() error = %v", err)
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	joinWithin(t, task.RunOnce, time.Second)

	if !errors.Is(task.Err(), boom) {
		t.Errorf("Err() = %v, want boom", task.Err())
	}
	if got := len(rec.startTimes()); got != 3 {
		t.Errorf("target invoked %d times, want exactly 3", got)
	}
	if task.State() != StateFinished {
		t.Errorf("State() = %s, want finished", task.State())
	}
}

func TestRunAtInterval_Interval(t *testing.T) {
	noop := func(context.Context) error { return nil }
	task, err := NewRunAtInterval(Config{Name: "i", Target: noop}, 42*time.Second)
	if err != nil {
		t.Fatalf("NewRunAtInterval() error = %v", err)
	}
	if got := task.Interval(); got != 42*time.Second {
		t.Errorf("Interval() = %v, want 42s", got)
	}
}

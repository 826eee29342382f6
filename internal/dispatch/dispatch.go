package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a dispatch task.
//
// Transitions: Created → Running → {Finished | Terminated}.
// Both terminal states guarantee the cleanup step has run exactly once.
type State int32

const (
	// StateCreated means the task has been constructed but not started.
	StateCreated State = iota

	// StateRunning means the target is executing on its goroutine.
	StateRunning

	// StateFinished means the target returned and no termination was requested.
	StateFinished

	// StateTerminated means the task exited after Terminate() was requested.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Target is the unit of work a task runs on its dedicated goroutine.
//
// The context is the task's own cancellation handle: it is cancelled by
// Terminate(), so cooperative loops and blocking waits inside the target
// observe shutdown without any extra wiring by the caller.
type Target func(ctx context.Context) error

// Config holds construction parameters for a dispatch task.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Target is the work to run. Required.
	Target Target

	// Cleanup runs exactly once after the target exits, on every exit
	// path: normal return, error, panic, or termination. Optional.
	Cleanup func()
}

// Logger defines the logging interface for dispatch tasks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RunOnce executes a target once on a dedicated goroutine.
//
// Any error the target raises, whether an ordinary returned error or a
// recovered panic, is
// captured on the instance (first one wins), never re-thrown on the task
// goroutine, and never allowed to crash the process. The supervisor, or
// any caller, inspects it via Err() after Join().
type RunOnce struct {
	id      string
	name    string
	target  Target
	cleanup func()

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	terminated atomic.Bool
	done       chan struct{}

	errMu sync.Mutex
	err   error

	logger Logger
}

// NewRunOnce creates a task from the given configuration.
//
// Returns ErrNilTarget if cfg.Target is nil.
func NewRunOnce(cfg Config) (*RunOnce, error) {
	if cfg.Target == nil {
		return nil, ErrNilTarget
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &RunOnce{
		id:      uuid.New().String(),
		name:    cfg.Name,
		target:  cfg.Target,
		cleanup: cfg.Cleanup,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  noopLogger{},
	}
	t.state.Store(int32(StateCreated))
	return t, nil
}

// SetLogger sets the logger for the task. Must be called before Start().
func (t *RunOnce) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Start begins running the target on a dedicated goroutine.
//
// Returns ErrAlreadyStarted if the task has been started before; a task is
// single-use and never restarts itself (that is the Supervisor's job).
func (t *RunOnce) Start() error {
	if !t.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return fmt.Errorf("%w: task %q is %s", ErrAlreadyStarted, t.name, t.State())
	}

	t.logger.Debug("dispatch task starting", "task", t.name, "id", t.id)
	go t.run()
	return nil
}

// run drives the target to completion and settles the terminal state.
func (t *RunOnce) run() {
	err := t.invokeTarget()

	// A context.Canceled surfacing after Terminate() is the cooperative
	// shutdown path, not a failure.
	if err != nil && !(t.terminated.Load() && errors.Is(err, context.Canceled)) {
		t.captureErr(err)
	}

	t.invokeCleanup()

	final := StateFinished
	if t.terminated.Load() {
		final = StateTerminated
	}
	t.state.Store(int32(final))

	if capturedErr := t.Err(); capturedErr != nil {
		t.logger.Warn("dispatch task exited with error",
			"task", t.name,
			"id", t.id,
			"state", final.String(),
			"error", capturedErr,
		)
	} else {
		t.logger.Debug("dispatch task exited",
			"task", t.name,
			"id", t.id,
			"state", final.String(),
		)
	}

	close(t.done)
}

// invokeTarget runs the target, converting a panic into a captured error.
func (t *RunOnce) invokeTarget() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrTargetPanicked, r, debug.Stack())
		}
	}()
	return t.target(t.ctx)
}

// invokeCleanup runs the cleanup step. A panicking cleanup is captured like
// a target failure rather than crashing the task goroutine.
func (t *RunOnce) invokeCleanup() {
	if t.cleanup == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.captureErr(fmt.Errorf("%w: %v", ErrCleanupPanicked, r))
		}
	}()
	t.cleanup()
}

// captureErr stores the first error raised by the task.
func (t *RunOnce) captureErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

// Terminate signals the task's cancellation handle.
//
// It is non-blocking and idempotent; it does not forcibly kill the
// goroutine. A target blocked on a cancellation-aware wait unblocks
// promptly, so Terminate followed by Join bounds shutdown latency at
// roughly the target's time-to-next-suspension-point.
func (t *RunOnce) Terminate() {
	t.terminated.Store(true)
	t.cancel()
}

// Join blocks until the task reaches a terminal state.
// Joining a task that was never started blocks forever; check State() first
// if that is a possibility.
func (t *RunOnce) Join() {
	<-t.done
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *RunOnce) Done() <-chan struct{} {
	return t.done
}

// IsAlive reports whether the target is currently running.
func (t *RunOnce) IsAlive() bool {
	return t.State() == StateRunning
}

// State returns the current lifecycle state.
func (t *RunOnce) State() State {
	return State(t.state.Load())
}

// Err returns the first error captured from the target or cleanup, or nil.
// Stable once Join() has returned.
func (t *RunOnce) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// ID returns the unique identifier assigned at construction.
func (t *RunOnce) ID() string {
	return t.id
}

// Name returns the configured task name.
func (t *RunOnce) Name() string {
	return t.name
}

// RunAtInterval executes a target repeatedly on a dedicated goroutine.
//
// After each run completes, it waits until Interval has elapsed since that
// run *started* before beginning the next one. A run that overshoots the
// interval rolls straight into the next run: there is no overlap and no
// catch-up burst. The inter-run wait observes the cancellation handle, so
// Terminate() interrupts it immediately.
//
// A target error ends the loop and is captured like any RunOnce failure.
type RunAtInterval struct {
	*RunOnce
	interval time.Duration
}

// NewRunAtInterval creates a repeating task from the given configuration.
//
// Returns ErrNilTarget if cfg.Target is nil and ErrInvalidInterval if the
// interval is negative. A zero interval runs back to back.
func NewRunAtInterval(cfg Config, interval time.Duration) (*RunAtInterval, error) {
	if cfg.Target == nil {
		return nil, ErrNilTarget
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	inner, err := NewRunOnce(Config{
		Name:    cfg.Name,
		Target:  intervalLoop(cfg.Target, interval),
		Cleanup: cfg.Cleanup,
	})
	if err != nil {
		return nil, err
	}

	return &RunAtInterval{
		RunOnce:  inner,
		interval: interval,
	}, nil
}

// Interval returns the configured inter-run interval.
func (t *RunAtInterval) Interval() time.Duration {
	return t.interval
}

// intervalLoop wraps a target in the spaced repetition loop.
func intervalLoop(target Target, interval time.Duration) Target {
	return func(ctx context.Context) error {
		for {
			started := time.Now()

			if err := target(ctx); err != nil {
				return err
			}

			wait := interval - time.Since(started)
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			} else {
				// Overdue: start the next run immediately, but still
				// honour a termination that arrived during the run.
				select {
				case <-ctx.Done():
					return nil
				default:
				}
			}
		}
	}
}

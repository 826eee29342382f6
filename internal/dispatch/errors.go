package dispatch

import "errors"

// Domain-specific errors for dispatch tasks.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNilTarget is returned when constructing a task without a target.
	ErrNilTarget = errors.New("dispatch: target is required")

	// ErrAlreadyStarted is returned when Start() is called more than once.
	ErrAlreadyStarted = errors.New("dispatch: task already started")

	// ErrInvalidInterval is returned for a negative repetition interval.
	ErrInvalidInterval = errors.New("dispatch: interval must not be negative")

	// ErrTargetPanicked wraps a panic recovered from a target.
	ErrTargetPanicked = errors.New("dispatch: target panicked")

	// ErrCleanupPanicked wraps a panic recovered from a cleanup step.
	ErrCleanupPanicked = errors.New("dispatch: cleanup panicked")

	// ErrNilFactory is returned when a supervisor is built without a task factory.
	ErrNilFactory = errors.New("dispatch: task factory is required")

	// ErrSupervisorRunning is returned when Start() is called on a running supervisor.
	ErrSupervisorRunning = errors.New("dispatch: supervisor already running")
)

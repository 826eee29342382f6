package dispatch

import (
	"context"
	"sync"
	"time"
)

// Status represents the supervisor's view of its managed task.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// SupervisorConfig holds configuration for a supervised task.
type SupervisorConfig struct {
	// Name is a human-readable identifier for logging.
	Name string

	// New builds a fresh task for each start and restart. Required.
	// Tasks are single-use, so the supervisor cannot reuse a dead one.
	New func() *RunOnce

	// RestartOnFailure enables automatic restart when the task exits
	// with a captured error.
	RestartOnFailure bool

	// RestartDelay is the time to wait before restarting after a failure.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// OnStop is called when the task stops (err is nil for a clean stop).
	OnStop func(err error)

	// OnRestart is called before each restart attempt.
	OnRestart func(attempt int)
}

// defaultRestartDelay applies when the config leaves the delay zero.
const defaultRestartDelay = 5 * time.Second

// Supervisor manages the lifecycle of a restartable dispatch task.
//
// It starts a task from the factory, joins it, inspects the captured
// error, and decides whether to restart or stay down. This is the
// supervising loop the dispatch error model hands failures to: a task
// never crashes the process, it parks its error for this component.
type Supervisor struct {
	config SupervisorConfig
	logger Logger

	mu            sync.RWMutex
	task          *RunOnce
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	done chan struct{}
}

// NewSupervisor creates a supervisor with the given configuration.
//
// Returns ErrNilFactory if cfg.New is nil.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.New == nil {
		return nil, ErrNilFactory
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = defaultRestartDelay
	}

	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}, nil
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Start launches the task and begins monitoring it.
//
// The context bounds the supervisor itself: when it is cancelled, no
// further restarts happen (the running task is terminated via Stop).
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.mu.Unlock()
		return ErrSupervisorRunning
	}
	s.status = StatusRunning
	s.stopRequested = false
	s.restartCount = 0
	s.lastError = nil
	s.startTime = time.Now()
	s.done = make(chan struct{})
	s.mu.Unlock()

	task, err := s.startTask()
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.task = task
	s.mu.Unlock()

	go s.monitor(ctx)
	return nil
}

// startTask builds and starts a fresh task from the factory.
func (s *Supervisor) startTask() (*RunOnce, error) {
	task := s.config.New()
	if task == nil {
		return nil, ErrNilFactory
	}
	task.SetLogger(s.logger)

	s.logger.Info("starting supervised task", "name", s.config.Name, "task_id", task.ID())
	if err := task.Start(); err != nil {
		return nil, err
	}
	return task, nil
}

// monitor joins the task and handles restarts.
func (s *Supervisor) monitor(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.RLock()
		task := s.task
		s.mu.RUnlock()

		task.Join()
		err := task.Err()

		s.mu.Lock()
		stopRequested := s.stopRequested
		s.mu.Unlock()

		if stopRequested {
			s.logger.Info("supervised task stopped as requested", "name", s.config.Name)
			s.settle(StatusStopped, nil)
			return
		}

		if err == nil {
			// Target ran to completion on its own; nothing to restart.
			s.logger.Info("supervised task finished", "name", s.config.Name)
			s.settle(StatusStopped, nil)
			return
		}

		s.logger.Warn("supervised task failed",
			"name", s.config.Name,
			"task_id", task.ID(),
			"error", err,
		)
		s.settle(StatusFailed, err)

		if !s.config.RestartOnFailure {
			s.logger.Info("restart disabled, staying down", "name", s.config.Name)
			return
		}

		s.mu.Lock()
		s.restartCount++
		attempt := s.restartCount
		s.mu.Unlock()

		if s.config.MaxRestartAttempts > 0 && attempt > s.config.MaxRestartAttempts {
			s.logger.Error("max restart attempts reached",
				"name", s.config.Name,
				"attempts", attempt,
			)
			return
		}

		s.logger.Info("restarting supervised task",
			"name", s.config.Name,
			"attempt", attempt,
			"delay", s.config.RestartDelay,
		)
		if s.config.OnRestart != nil {
			s.config.OnRestart(attempt)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("context cancelled, not restarting", "name", s.config.Name)
			return
		case <-time.After(s.config.RestartDelay):
		}

		s.mu.Lock()
		stopRequested = s.stopRequested
		s.mu.Unlock()
		if stopRequested {
			return
		}

		next, startErr := s.startTask()
		if startErr != nil {
			s.logger.Error("failed to restart task",
				"name", s.config.Name,
				"error", startErr,
			)
			s.settle(StatusFailed, startErr)
			return
		}

		s.mu.Lock()
		s.task = next
		s.status = StatusRunning
		s.mu.Unlock()
	}
}

// settle records a terminal observation and fires the OnStop callback.
func (s *Supervisor) settle(status Status, err error) {
	s.mu.Lock()
	s.status = status
	if err != nil {
		s.lastError = err
	}
	s.mu.Unlock()

	if s.config.OnStop != nil {
		s.config.OnStop(err)
	}
}

// Stop terminates the task and waits for the monitor to settle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.status != StatusRunning && s.status != StatusFailed {
		s.mu.Unlock()
		return
	}
	s.stopRequested = true
	task := s.task
	done := s.done
	s.mu.Unlock()

	if task != nil {
		task.Terminate()
	}
	if done != nil {
		<-done
	}
}

// Status returns the supervisor's current status.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsRunning reports whether the managed task is currently running.
func (s *Supervisor) IsRunning() bool {
	return s.Status() == StatusRunning
}

// LastError returns the most recent captured task error.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// RestartCount returns the number of restarts performed.
func (s *Supervisor) RestartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restartCount
}

// Stats is a point-in-time snapshot of supervisor state.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the supervised task.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Name:         s.config.Name,
		Status:       s.status,
		RestartCount: s.restartCount,
	}
	if s.status == StatusRunning {
		stats.Uptime = time.Since(s.startTime)
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

// Task is a periodic loop body driven by the Scheduler. Tick is called at
// simulated times 0, Interval, 2*Interval, ... while the time is <= Horizon.
type Task interface {
	Name() string
	Interval() time.Duration
	Horizon() time.Duration
	Tick(ctx context.Context, t primitives.TimeStep) error
}

// Mode selects how tasks are multiplexed.
type Mode int

const (
	ModeCooperative Mode = iota
	ModeParallel
)

func (m Mode) String() string {
	switch m {
	case ModeCooperative:
		return "cooperative"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "cooperative" or "parallel" (case-insensitive) to a Mode.
// The empty string selects ModeCooperative.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "cooperative":
		return ModeCooperative, nil
	case "parallel":
		return ModeParallel, nil
	default:
		return 0, fmt.Errorf("unknown scheduler mode %q (valid: cooperative, parallel)", s)
	}
}

// Config configures the scheduler
type Config struct {
	Mode    Mode         // Task multiplexing (default: cooperative)
	Speed   float64      // Simulated seconds per wall-clock second (default: 1)
	Unpaced bool         // Never suspend between ticks
	Clock   Clock        // Suspension and wall time (default: SystemClock)
	Logger  *slog.Logger // Default: discard
}

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")
)

// Scheduler runs registered tasks from simulated time 0 to each task's horizon.
type Scheduler struct {
	cfg Config

	mu          sync.Mutex
	entries     []*TaskWithMeta
	sequenceNum uint64
	now         primitives.TimeStep
	tickNum     uint64
	started     bool
	progress    *sync.Cond // parallel mode: signalled when a task advances

	// Control
	cancel   context.CancelFunc
	stopping bool
	stopped  chan struct{}
	err      error
}

// NewScheduler creates a scheduler, filling unset Config fields with defaults.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		cfg:     cfg,
		stopped: make(chan struct{}),
	}
}

// Clock returns the clock the scheduler suspends on.
func (s *Scheduler) Clock() Clock {
	return s.cfg.Clock
}

// Add registers a task with default priority.
func (s *Scheduler) Add(task Task) error {
	return s.AddWithPriority(task, 0)
}

// AddWithPriority registers a task. Among tasks due at the same simulated time,
// higher priority runs first.
func (s *Scheduler) AddWithPriority(task Task, priority int) error {
	if task == nil {
		return errors.New("nil task")
	}
	step := primitives.FromDuration(task.Interval())
	if step <= 0 {
		return fmt.Errorf("task %s: interval must be at least 1ms, got %v", task.Name(), task.Interval())
	}
	horizon := primitives.FromDuration(task.Horizon())
	if horizon < 0 {
		return fmt.Errorf("task %s: negative horizon %v", task.Name(), task.Horizon())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	s.entries = append(s.entries, &TaskWithMeta{
		Task:        task,
		SequenceNum: s.sequenceNum,
		Priority:    priority,
		step:        step,
		horizon:     horizon,
	})
	s.sequenceNum++
	return nil
}

// Start launches the run in the background. Use Wait for its result.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(runCtx)

	return nil
}

// Wait blocks until the run ends and returns its error. A run ended by Stop
// returns nil.
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	<-s.stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping && errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

// Stop cancels the run and waits for every loop to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	return s.Wait()
}

// Run starts the scheduler and blocks until every task reached its horizon,
// a task failed, or ctx was cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Now returns the simulated time of the latest batch (cooperative mode).
func (s *Scheduler) Now() primitives.TimeStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// TickNumber returns how many task ticks have run.
func (s *Scheduler) TickNumber() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickNum
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stopped)
	defer s.cancel()

	s.cfg.Logger.Info("scheduler started",
		"mode", s.cfg.Mode.String(),
		"tasks", len(s.entries),
		"speed", s.cfg.Speed,
		"unpaced", s.cfg.Unpaced)

	var err error
	switch s.cfg.Mode {
	case ModeParallel:
		err = s.runParallel(ctx)
	default:
		err = s.runCooperative(ctx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.cfg.Logger.Error("scheduler stopped", "error", err)
	} else {
		s.cfg.Logger.Info("scheduler finished", "ticks", s.TickNumber())
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// invoke runs one task tick, converting a panic into an error so that a broken
// listener stops the run loudly instead of killing the process.
func (s *Scheduler) invoke(ctx context.Context, e *TaskWithMeta, t primitives.TimeStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("task %s panicked at t=%s: %w", e.Task.Name(), t, rerr)
			} else {
				err = fmt.Errorf("task %s panicked at t=%s: %v", e.Task.Name(), t, r)
			}
		}
	}()

	if err := e.Task.Tick(ctx, t); err != nil {
		return fmt.Errorf("task %s at t=%s: %w", e.Task.Name(), t, err)
	}

	s.mu.Lock()
	s.tickNum++
	s.mu.Unlock()
	return nil
}

// pause suspends for a simulated span scaled by Speed.
func (s *Scheduler) pause(ctx context.Context, span primitives.TimeStep) error {
	if s.cfg.Unpaced || span <= 0 {
		return ctx.Err()
	}
	d := time.Duration(float64(span.Duration()) / s.cfg.Speed)
	return s.cfg.Clock.Sleep(ctx, d)
}

package sched

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a zero-argument unit of work with captured state.
type Task = func()

// TaskScheduler is a FIFO queue of deferred tasks drained by a single goroutine.
//
// The queue is unbounded so a cascade of resolving procedures can defer any
// number of notifications without blocking.
//
// Thread-safety model:
//   - Defer(): safe from any goroutine
//   - RunPending() / Run(): must be called from exactly one goroutine
type TaskScheduler struct {
	mu      sync.Mutex
	pending []Task
	closed  bool
	signal  chan struct{} // Signals task availability (buffered, size 1)
	logger  *slog.Logger
}

// Option configures a TaskScheduler.
type Option func(*TaskScheduler)

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *TaskScheduler) {
		s.logger = l
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *TaskScheduler {
	s := &TaskScheduler{
		pending: make([]Task, 0, 16),
		signal:  make(chan struct{}, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defer queues a task for the next drain.
// The task is never executed synchronously within this call.
// Returns false if the scheduler is closed.
func (s *TaskScheduler) Defer(task func()) bool {
	if task == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.pending = append(s.pending, task)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case s.signal <- struct{}{}:
	default:
	}

	return true
}

// RunPending drains the queue once and returns the number of tasks executed.
//
// Only tasks queued before the call are run. Tasks deferred by those tasks
// land in a fresh slice and run on the next drain, so a task that keeps
// deferring itself cannot starve the caller.
func (s *TaskScheduler) RunPending() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = make([]Task, 0, cap(batch))
	s.mu.Unlock()

	for i, task := range batch {
		// Drop the reference so captured state can be collected early.
		batch[i] = nil
		task()
	}

	return len(batch)
}

// Len returns the number of queued tasks.
func (s *TaskScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Wait returns a channel that signals when tasks may be available.
func (s *TaskScheduler) Wait() <-chan struct{} {
	return s.signal
}

// Close stops accepting tasks and wakes Run.
// Tasks already queued are drained by Run before it returns.
func (s *TaskScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.signal)
}

// Run drains deferred tasks until ctx is cancelled or Close is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Every procedure call
// of the owning stack happens inside tasks run here.
func (s *TaskScheduler) Run(ctx context.Context) error {
	s.logger.Debug("scheduler loop starting")

	for {
		// Checked before every drain: self-deferring tasks keep the queue non-empty.
		if err := ctx.Err(); err != nil {
			return s.stop(err)
		}
		if s.RunPending() > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return s.stop(ctx.Err())

		case _, ok := <-s.signal:
			if !ok {
				// Closed: run what was queued before Close, then exit.
				s.RunPending()
				s.logger.Debug("scheduler loop stopping: closed")
				return nil
			}
		}
	}
}

func (s *TaskScheduler) stop(err error) error {
	s.logger.Debug("scheduler loop stopping: context cancelled")
	s.Close()
	return err
}

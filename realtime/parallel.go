package realtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/comalice/circuitx/internal/primitives"
)

// runParallel gives every task its own goroutine. Each loop ticks, then
// suspends for its own interval. A task due at t first waits until every
// higher-priority task has finished its ticks at or before t, so consumers
// never run ahead of their producers. Tasks of equal priority do not wait
// for each other, and a producer may run ahead of its consumers.
func (s *Scheduler) runParallel(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.progress = sync.NewCond(&s.mu)
	entries := append([]*TaskWithMeta(nil), s.entries...)
	s.mu.Unlock()

	stop := context.AfterFunc(gctx, s.wake)
	defer stop()

	for _, e := range entries {
		g.Go(func() error {
			return s.runLoop(gctx, e)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, e *TaskWithMeta) error {
	for t := primitives.TimeStep(0); t <= e.horizon; t += e.step {
		if err := s.awaitUpstream(ctx, e, t); err != nil {
			return err
		}
		if err := s.invoke(ctx, e, t); err != nil {
			return err
		}

		s.mu.Lock()
		e.advance()
		s.progress.Broadcast()
		s.mu.Unlock()

		if t+e.step > e.horizon {
			break
		}
		if err := s.pause(ctx, e.step); err != nil {
			return err
		}
	}
	return nil
}

// awaitUpstream blocks until no higher-priority task still has a tick at or
// before t, or ctx is done.
func (s *Scheduler) awaitUpstream(ctx context.Context, e *TaskWithMeta, t primitives.TimeStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.upstreamPastLocked(e, t) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.progress.Wait()
	}
	return ctx.Err()
}

func (s *Scheduler) upstreamPastLocked(e *TaskWithMeta, t primitives.TimeStep) bool {
	for _, f := range s.entries {
		if f.Priority > e.Priority && !f.done && f.next <= t {
			return false
		}
	}
	return true
}

// wake releases every waiting loop so it can observe cancellation.
func (s *Scheduler) wake() {
	s.mu.Lock()
	s.progress.Broadcast()
	s.mu.Unlock()
}

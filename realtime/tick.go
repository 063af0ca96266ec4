package realtime

import (
	"context"

	"github.com/comalice/circuitx/internal/primitives"
)

// runCooperative multiplexes every task on the calling goroutine.
func (s *Scheduler) runCooperative(ctx context.Context) error {
	for {
		// Phase 1: Find the earliest due time and every task due then
		due, batch := s.collectDue()
		if len(batch) == 0 {
			return nil
		}

		// Phase 2: Suspend until that simulated time
		if err := s.pause(ctx, due-s.Now()); err != nil {
			return err
		}
		s.mu.Lock()
		s.now = due
		s.mu.Unlock()

		// Phase 3: Deterministic order inside the instant
		sortTasks(batch)

		// Phase 4: Run the batch
		if err := s.processBatch(ctx, due, batch); err != nil {
			return err
		}
	}
}

// collectDue returns the earliest pending time and the tasks due at it.
func (s *Scheduler) collectDue() (primitives.TimeStep, []*TaskWithMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		due   primitives.TimeStep
		batch []*TaskWithMeta
	)
	for _, e := range s.entries {
		if e.done {
			continue
		}
		switch {
		case batch == nil || e.next < due:
			due = e.next
			batch = []*TaskWithMeta{e}
		case e.next == due:
			batch = append(batch, e)
		}
	}
	return due, batch
}

func (s *Scheduler) processBatch(ctx context.Context, due primitives.TimeStep, batch []*TaskWithMeta) error {
	for _, e := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.invoke(ctx, e, due); err != nil {
			return err
		}
		s.mu.Lock()
		e.advance()
		s.mu.Unlock()
	}
	return nil
}

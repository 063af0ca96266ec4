package realtime

import (
	"sort"

	"github.com/comalice/circuitx/internal/primitives"
)

// TaskWithMeta adds scheduling metadata for deterministic ordering.
type TaskWithMeta struct {
	Task        Task
	SequenceNum uint64
	Priority    int

	step    primitives.TimeStep
	horizon primitives.TimeStep
	next    primitives.TimeStep
	done    bool
}

// advance moves the entry to its next due time, marking it done past the horizon.
func (e *TaskWithMeta) advance() {
	e.next += e.step
	if e.next > e.horizon {
		e.done = true
	}
}

// sortTasks orders a batch of tasks due at the same simulated time.
func sortTasks(batch []*TaskWithMeta) {
	// Stable sort preserves insertion order for equal priorities
	sort.SliceStable(batch, func(i, j int) bool {
		// Primary: Higher priority first
		if batch[i].Priority != batch[j].Priority {
			return batch[i].Priority > batch[j].Priority
		}

		// Secondary: Earlier registration first (FIFO)
		return batch[i].SequenceNum < batch[j].SequenceNum
	})
}

// Ordering guarantees within one simulated instant:
// 1. Higher priority tasks run first
// 2. Equal priorities run in registration order
// 3. A task never runs twice in one instant

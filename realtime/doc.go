// Package realtime schedules periodic simulation tasks against one shared clock.
//
// A Task is a loop body with a fixed interval and an inclusive horizon: it runs
// at simulated times 0, interval, 2*interval, ... up to and including the
// horizon. The Scheduler owns the loops; tasks own no scheduling logic.
//
// # Modes
//
// ModeCooperative (default) multiplexes every task on a single goroutine:
//   - All tasks due at the same simulated time form one batch
//   - Batches run in simulated-time order, suspended by (delta / Speed) on the Clock
//   - Inside a batch, higher priority runs first, then registration order
//   - Nothing runs in parallel, so synchronous notifications raised by one task
//     are complete before the next task observes shared state
//
// ModeParallel runs each task on its own goroutine under an errgroup. Priority
// still orders dependencies: a task due at t waits until every higher-priority
// task has finished its ticks at or before t. Beyond that, ordering is up to
// the Go scheduler and a producer may run ahead of its consumers, so shared
// state must be guarded by its owner. The first task error cancels every
// other loop.
//
// # Example Usage
//
//	s := realtime.NewScheduler(realtime.Config{Speed: 1})
//	s.AddWithPriority(circuit, 10)
//	s.Add(voltmeter)
//	if err := s.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Pacing
//
// Speed is simulated seconds per wall-clock second: 1 watches the run in real
// time, 10 runs ten times faster. Unpaced skips suspension entirely. A
// VirtualClock keeps wall-clock timestamps consistent with simulated time
// without blocking, which is what tests use.
//
// # Cancellation
//
// The context is checked at every suspension point. Stop cancels the run and
// waits for the loops to exit; a run that reaches every horizon ends by itself.
package realtime

// Package testutil runs one simulation scenario under every scheduling and
// sampling combination, so a test suite covers them all.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/realtime"
)

// Epoch is the wall-clock start of every test run.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Runner is one way of running a simulation.
type Runner struct {
	Name     string
	Mode     realtime.Mode
	Sampling string
}

// Exact reports whether every sample is taken at exactly the circuit state of
// its own time step. Polled meters in parallel mode read whatever state the
// circuit goroutine last committed.
func (r Runner) Exact() bool {
	return r.Mode == realtime.ModeCooperative || r.Sampling == circuitx.SamplingTriggered
}

// Configure applies the runner's mode and sampling to cfg and disables pacing.
func (r Runner) Configure(cfg *circuitx.Config) {
	cfg.Scheduler.Mode = r.Mode.String()
	cfg.Scheduler.Unpaced = true
	cfg.Sampling = r.Sampling
}

// New builds a simulation from cfg for this runner, on a virtual clock.
func (r Runner) New(cfg *circuitx.Config, opts ...circuitx.Option) (*circuitx.Simulation, error) {
	c := *cfg
	r.Configure(&c)
	opts = append([]circuitx.Option{circuitx.WithClock(realtime.NewVirtualClock(Epoch))}, opts...)
	return circuitx.New(&c, opts...)
}

// Run builds and runs a simulation from cfg.
func (r Runner) Run(ctx context.Context, cfg *circuitx.Config, opts ...circuitx.Option) (*circuitx.Simulation, error) {
	sim, err := r.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return sim, sim.Run(ctx)
}

// Runners returns every scheduling and sampling combination.
func Runners() []Runner {
	return []Runner{
		{Name: "Cooperative", Mode: realtime.ModeCooperative, Sampling: circuitx.SamplingPolled},
		{Name: "Parallel", Mode: realtime.ModeParallel, Sampling: circuitx.SamplingPolled},
		{Name: "CooperativeTriggered", Mode: realtime.ModeCooperative, Sampling: circuitx.SamplingTriggered},
		{Name: "ParallelTriggered", Mode: realtime.ModeParallel, Sampling: circuitx.SamplingTriggered},
	}
}

// ForEach runs fn as a subtest for every runner.
func ForEach(t *testing.T, fn func(t *testing.T, r Runner)) {
	t.Helper()
	for _, r := range Runners() {
		t.Run(r.Name, func(t *testing.T) {
			fn(t, r)
		})
	}
}

package circuitx_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/primitives"
	"github.com/comalice/circuitx/internal/production"
	"github.com/comalice/circuitx/realtime"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func unpaced() *circuitx.Config {
	cfg := circuitx.Default()
	cfg.Scheduler.Unpaced = true
	return cfg
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := circuitx.Default()
	cfg.Circuit.R2 = 1000

	_, err := circuitx.New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, primitives.ErrInvariant)
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	sim, err := circuitx.New(nil)
	require.NoError(t, err)
	assert.Equal(t, *circuitx.Default(), sim.Config())
}

func TestSimulation_RunOnceThenReset(t *testing.T) {
	sim, err := circuitx.New(unpaced(), circuitx.WithClock(realtime.NewVirtualClock(epoch)))
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	first := sim.Voltmeter().History()
	assert.Len(t, first, 101)
	assert.Equal(t, uint64(101+101+34+11+6), sim.Ticks())

	assert.ErrorIs(t, sim.Run(context.Background()), circuitx.ErrNeedsReset)

	require.NoError(t, sim.Reset())
	assert.Empty(t, sim.Voltmeter().History())
	assert.False(t, sim.Ohmmeter().Ready())
	assert.Equal(t, 0.0, sim.Circuit().Snapshot().R1)
	_, ok := sim.Circuit().TimeStep().Get()
	assert.False(t, ok, "the time step is cleared until the next run publishes t=0")

	require.NoError(t, sim.Restart(context.Background()))
	assert.Equal(t, first, sim.Voltmeter().History(), "a restarted run repeats the first one")
}

func TestSimulation_TriggeredRestart(t *testing.T) {
	cfg := unpaced()
	cfg.Sampling = circuitx.SamplingTriggered
	sim, err := circuitx.New(cfg)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	require.NoError(t, sim.Restart(context.Background()))

	volts := sim.Voltmeter().History()
	require.Len(t, volts, 101)
	assert.Equal(t, primitives.TimeStep(0), volts[0].TimeStep)
	assert.Len(t, sim.Ammeter().History(), 34)
}

func TestSimulation_Stop(t *testing.T) {
	cfg := circuitx.Default()
	cfg.Scheduler.Speed = 1
	sim, err := circuitx.New(cfg)
	require.NoError(t, err)

	timer := time.AfterFunc(50*time.Millisecond, sim.Stop)
	defer timer.Stop()

	start := time.Now()
	require.NoError(t, sim.Run(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Less(t, len(sim.Voltmeter().History()), 101)
	assert.Empty(t, sim.Report().Error)
}

func TestSimulation_ParentCancel(t *testing.T) {
	sim, err := circuitx.New(circuitx.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = sim.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled), err)
	assert.NotEmpty(t, sim.Report().Error)
}

func TestSimulation_ResetWhileRunning(t *testing.T) {
	sim, err := circuitx.New(circuitx.Default())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return errors.Is(sim.Reset(), circuitx.ErrRunning)
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, sim.Run(context.Background()), circuitx.ErrRunning)

	sim.Stop()
	require.NoError(t, <-done)
}

func TestSimulation_PublishesReports(t *testing.T) {
	ch := make(chan core.Report, 64)
	pub := production.NewChannelPublisher(ch)
	sim, err := circuitx.New(unpaced(), circuitx.WithPublisher(pub))
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	require.NoError(t, pub.Close())

	counts := map[string]int{}
	for r := range ch {
		counts[r.Instrument]++
		assert.Equal(t, core.UnitKiloOhms, r.Unit)
	}
	assert.Equal(t, map[string]int{circuitx.NameOhmmeter: 11, circuitx.NameRollingOhmmeter: 6}, counts)
	assert.Zero(t, pub.Dropped())
}

func TestSimulation_Metrics(t *testing.T) {
	metrics := production.NewMetrics(prometheus.NewRegistry())
	sim, err := circuitx.New(unpaced(), circuitx.WithRecorder(metrics))
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))

	assert.Equal(t, 101.0, testutil.ToFloat64(metrics.TicksTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.SimulatedSeconds))
	assert.Equal(t, 100000.0, testutil.ToFloat64(metrics.Resistance.WithLabelValues("r1")))
	assert.Equal(t, 34.0, testutil.ToFloat64(metrics.ReadingsTotal.WithLabelValues(circuitx.NameAmmeter)))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.ReadingsTotal.WithLabelValues(circuitx.NameRollingOhmmeter)))
}

func TestSimulation_Report(t *testing.T) {
	sim, err := circuitx.New(unpaced(), circuitx.WithClock(realtime.NewVirtualClock(epoch)))
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background()))

	report := sim.Report()
	assert.Equal(t, "cooperative", report.Mode)
	assert.Equal(t, unpaced().Digest(), report.Config)
	assert.Equal(t, 10*time.Second, report.Horizon)
	assert.Equal(t, epoch, report.StartedAt)
	assert.Equal(t, primitives.TimeStep(10000), report.Final.TimeStep)
	require.Len(t, report.Instruments, 4)

	volt, ok := report.Instrument(circuitx.NameVoltmeter)
	require.True(t, ok)
	assert.Nil(t, volt.Ready)
	assert.Equal(t, core.UnitVolts, volt.Unit)

	rolling, ok := report.Instrument(circuitx.NameRollingOhmmeter)
	require.True(t, ok)
	require.NotNil(t, rolling.Ready)
	assert.True(t, *rolling.Ready)
	assert.Len(t, rolling.Readings, 6)

	var buf bytes.Buffer
	require.NoError(t, production.EncodeJSON(&buf, report))
	assert.Contains(t, buf.String(), `"name": "rolling_ohmmeter"`)

	series := sim.Series()
	require.Len(t, series, 4)
	assert.Equal(t, circuitx.NameVoltmeter, series[0].Name)
	assert.Len(t, series[0].Readings, 101)
}

func TestSimulation_ZeroHorizonRunsOneTick(t *testing.T) {
	for _, sampling := range []string{circuitx.SamplingPolled, circuitx.SamplingTriggered} {
		t.Run(sampling, func(t *testing.T) {
			cfg, err := circuitx.Parse([]byte("circuit:\n  horizon: 0s\nscheduler:\n  unpaced: true\n"))
			require.NoError(t, err)
			cfg.Sampling = sampling

			sim, err := circuitx.New(cfg)
			require.NoError(t, err)
			require.NoError(t, sim.Run(context.Background()))

			assert.Equal(t, primitives.TimeStep(0), sim.Circuit().Snapshot().TimeStep)
			for _, in := range sim.Report().Instruments {
				assert.Len(t, in.Readings, 1, in.Name)
			}
		})
	}
}

func TestSimulation_ZeroHorizonIgnoresLaterInvariant(t *testing.T) {
	cfg := unpaced()
	cfg.Circuit.Horizon = 0
	cfg.Circuit.Rate = 1e6 // R2 would go negative at t=1ms
	require.NoError(t, cfg.Validate())

	sim, err := circuitx.New(cfg)
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background()))
	assert.Len(t, sim.Voltmeter().History(), 1)
}

func TestSimulation_ShortedLoadExports(t *testing.T) {
	cfg := unpaced()
	cfg.Circuit.RL = 0
	sim, err := circuitx.New(cfg)
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background()))

	first := sim.Ammeter().History()[0]
	assert.True(t, math.IsInf(first.Value, 1), "R1 and RL both zero at t=0")

	var buf bytes.Buffer
	require.NoError(t, production.EncodeJSON(&buf, sim.Report()))
	assert.Contains(t, buf.String(), `"value": null`)

	buf.Reset()
	require.NoError(t, production.EncodeYAML(&buf, sim.Report()))
}

func TestSimulation_Topology(t *testing.T) {
	sim, err := circuitx.New(unpaced())
	require.NoError(t, err)

	before := sim.Topology()
	require.Len(t, before.Nodes, 5)
	require.Len(t, before.Edges, 6)
	for _, n := range before.Nodes {
		assert.False(t, n.Active, n.Name)
	}
	assert.Equal(t, "snapshot", before.Edges[0].Label)

	require.NoError(t, sim.Run(context.Background()))
	for _, n := range sim.Topology().Nodes {
		assert.True(t, n.Active, n.Name)
	}
	assert.Contains(t, production.ExportDOT(sim.Topology()), `"circuit" -> "voltmeter" [label="snapshot"];`)

	cfg := unpaced()
	cfg.Sampling = circuitx.SamplingTriggered
	triggered, err := circuitx.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "time_step", triggered.Topology().Edges[0].Label)
}

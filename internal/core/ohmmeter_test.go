package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/circuitx/internal/primitives"
)

func newTestOhmmeter(t *testing.T, est Estimator, opts ...Option) (*Ohmmeter, *primitives.Observable[float64], *primitives.Observable[float64]) {
	t.Helper()
	v := primitives.NewObservable[float64]()
	i := primitives.NewObservable[float64]()
	o, err := NewOhmmeter("ohmmeter", v, i, est, time.Second, opts...)
	require.NoError(t, err)
	return o, v, i
}

func TestOhmmeter_Readiness(t *testing.T) {
	o, v, i := newTestOhmmeter(t, nil)
	assert.False(t, o.Ready())

	v.Set(10)
	assert.False(t, o.Ready(), "current still absent")
	require.NoError(t, o.Tick(context.Background(), 0))
	assert.Empty(t, o.History())

	i.Set(1e6 * 10.0 / 30000)
	assert.True(t, o.Ready())
	got, ok := o.Value()
	require.True(t, ok)
	assert.InDelta(t, 30.0, got, 1e-9)

	// Readiness is monotonic: a dependency going absent does not undo it.
	v.Clear()
	assert.True(t, o.Ready())
}

func TestOhmmeter_ZeroCurrent(t *testing.T) {
	est := &scriptedEstimator{}
	o, v, i := newTestOhmmeter(t, est)

	v.Set(5)
	i.Set(0)
	assert.False(t, o.Ready())
	_, ok := o.Value()
	assert.False(t, ok)
	assert.Empty(t, est.observed)
}

func TestOhmmeter_TickReportsEstimate(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{{value: 42}}}
	pub := &publisher{}
	rec := newRecorder()
	o, v, i := newTestOhmmeter(t, est,
		WithPublisher(pub), WithRecorder(rec), WithClock(fixedClock{testEpoch}))

	v.Set(10)
	i.Set(500)
	assert.Equal(t, [][2]float64{{10, 500}}, est.observed)

	require.NoError(t, o.Tick(context.Background(), 2000))

	last, err := o.Last()
	require.NoError(t, err)
	assert.Equal(t, primitives.NewReading(2000, testEpoch, 42), last)
	require.Len(t, pub.reports, 1)
	assert.Equal(t, Report{Instrument: "ohmmeter", Unit: UnitKiloOhms, Reading: last}, pub.reports[0])
	assert.Len(t, rec.readings["ohmmeter"], 1)
}

func TestOhmmeter_NilEstimatorReportsInstant(t *testing.T) {
	o, v, i := newTestOhmmeter(t, nil)
	v.Set(6)
	i.Set(200)

	require.NoError(t, o.Tick(context.Background(), 1000))
	last, err := o.Last()
	require.NoError(t, err)
	assert.InDelta(t, 30.0, last.Value, 1e-12)
}

func TestOhmmeter_SkippedReports(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{
		{err: primitives.ErrDivisionByZero},
		{err: primitives.ErrEmptyHistory},
		{value: 7},
	}}
	rec := newRecorder()
	o, v, i := newTestOhmmeter(t, est, WithRecorder(rec))
	v.Set(1)
	i.Set(1)

	require.NoError(t, o.Tick(context.Background(), 0))
	require.NoError(t, o.Tick(context.Background(), 1000))
	require.NoError(t, o.Tick(context.Background(), 2000))

	assert.Equal(t, []string{"division_by_zero", "empty_history"}, rec.skips["ohmmeter"])
	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, primitives.TimeStep(2000), history[0].TimeStep)
}

func TestOhmmeter_EstimatorFailure(t *testing.T) {
	boom := errors.New("boom")
	o, v, i := newTestOhmmeter(t, &scriptedEstimator{results: []estimate{{err: boom}}})
	v.Set(1)
	i.Set(1)

	err := o.Tick(context.Background(), 0)
	assert.ErrorIs(t, err, boom)
}

func TestOhmmeter_PublishFailureDoesNotStopRun(t *testing.T) {
	pub := &publisher{err: errors.New("display gone")}
	o, v, i := newTestOhmmeter(t, nil, WithPublisher(pub))
	v.Set(1)
	i.Set(1)

	assert.NoError(t, o.Tick(context.Background(), 0))
	assert.Len(t, o.History(), 1)
}

func TestOhmmeter_Reset(t *testing.T) {
	est := &scriptedEstimator{results: []estimate{{value: 1}}}
	o, v, i := newTestOhmmeter(t, est)
	v.Set(1)
	i.Set(1)
	require.NoError(t, o.Tick(context.Background(), 0))

	o.Reset()
	assert.False(t, o.Ready())
	_, ok := o.Value()
	assert.False(t, ok)
	assert.Empty(t, o.History())
	assert.Equal(t, 1, est.resets)
}

func TestOhmmeter_Validation(t *testing.T) {
	obs := primitives.NewObservable[float64]()
	_, err := NewOhmmeter("x", nil, obs, nil, time.Second)
	assert.Error(t, err)
	_, err = NewOhmmeter("x", obs, obs, nil, 0)
	assert.Error(t, err)
}

// Drives the reference scenario by hand in cooperative order: circuit first,
// then instruments by descending priority.
func TestOhmmeter_FirstReportFollowsSamples(t *testing.T) {
	c, err := NewCircuit(defaultCircuitConfig())
	require.NoError(t, err)
	vm, err := NewVoltmeter(c, 100*time.Millisecond)
	require.NoError(t, err)
	am, err := NewAmmeter(c, 300*time.Millisecond)
	require.NoError(t, err)
	om, err := NewOhmmeter("ohmmeter", vm.Reading(), am.Reading(), nil, time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	for step := primitives.TimeStep(0); step <= 10000; step += 100 {
		require.NoError(t, c.Tick(ctx, step))
		require.NoError(t, vm.Tick(ctx, step))
		if step%300 == 0 {
			require.NoError(t, am.Tick(ctx, step))
		}
		if step%1000 == 0 {
			require.NoError(t, om.Tick(ctx, step))
		}
	}

	require.NotEmpty(t, om.History())
	first := om.History()[0]
	assert.GreaterOrEqual(t, first.TimeStep, vm.History()[0].TimeStep)
	assert.GreaterOrEqual(t, first.TimeStep, am.History()[0].TimeStep)
	assert.Len(t, om.History(), 11)

	// At t=0 both meters read the same state: V/I is RL in kilo-ohms.
	assert.InDelta(t, 30.0, first.Value, 1e-9)
}

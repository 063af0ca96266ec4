package core

import (
	"context"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func defaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		R1:       0,
		R2:       100000,
		RL:       DefaultLoad,
		Vs:       DefaultSource,
		Rate:     DefaultRate,
		TickSize: 100 * time.Millisecond,
		Horizon:  10 * time.Second,
	}
}

type recorder struct {
	mu       sync.Mutex
	ticks    []State
	readings map[string][]primitives.Reading
	skips    map[string][]string
}

func newRecorder() *recorder {
	return &recorder{
		readings: make(map[string][]primitives.Reading),
		skips:    make(map[string][]string),
	}
}

func (r *recorder) RecordTick(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, s)
}

func (r *recorder) RecordReading(instrument string, rd primitives.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings[instrument] = append(r.readings[instrument], rd)
}

func (r *recorder) RecordSkip(instrument, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips[instrument] = append(r.skips[instrument], reason)
}

type publisher struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (p *publisher) Publish(_ context.Context, r Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return p.err
}

func (p *publisher) Close() error { return nil }

// scriptedEstimator returns queued results in order, then the last one.
type scriptedEstimator struct {
	observed [][2]float64
	results  []estimate
	resets   int
}

type estimate struct {
	value float64
	err   error
}

func (e *scriptedEstimator) Observe(v, i float64) {
	e.observed = append(e.observed, [2]float64{v, i})
}

func (e *scriptedEstimator) Estimate() (float64, error) {
	if len(e.results) == 0 {
		return 0, primitives.ErrEmptyHistory
	}
	r := e.results[0]
	if len(e.results) > 1 {
		e.results = e.results[1:]
	}
	return r.value, r.err
}

func (e *scriptedEstimator) Reset() {
	e.observed = nil
	e.resets++
}

// staticSource serves a fixed snapshot.
type staticSource struct{ s State }

func (s staticSource) Snapshot() State { return s.s }

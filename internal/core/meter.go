package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

// Instrument units.
const (
	UnitVolts      = "V"
	UnitMicroAmps  = "uA"
	UnitKiloOhms   = "kOhm"
	MicroAmpsScale = 1e6
)

// Probe extracts the measured quantity from a circuit snapshot.
type Probe func(s State) float64

// VoltageProbe measures the load voltage V_L in volts.
func VoltageProbe(s State) float64 {
	return s.LoadVoltage
}

// CurrentProbe measures the load current in microamperes.
func CurrentProbe(s State) float64 {
	return s.LoadCurrent() * MicroAmpsScale
}

// Meter is a sampling instrument. Each sample reads the circuit, publishes the
// value on the meter's Observable and appends a Reading to its history.
//
// A Meter is either scheduled as a task (Tick) or attached to a circuit's
// time-step Observable (AttachTo); not both.
type Meter struct {
	name     string
	unit     string
	src      Source
	probe    Probe
	interval time.Duration
	opts     options

	mu      sync.Mutex
	reading *primitives.Observable[float64]
	history *primitives.History
}

// NewMeter creates a sampling instrument reading src through probe every
// interval of simulated time.
func NewMeter(name, unit string, src Source, interval time.Duration, probe Probe, opts ...Option) (*Meter, error) {
	if src == nil {
		return nil, fmt.Errorf("meter %s: nil source", name)
	}
	if probe == nil {
		return nil, fmt.Errorf("meter %s: nil probe", name)
	}
	if primitives.FromDuration(interval) <= 0 {
		return nil, fmt.Errorf("meter %s: interval must be at least 1ms, got %v", name, interval)
	}
	return &Meter{
		name:     name,
		unit:     unit,
		src:      src,
		probe:    probe,
		interval: interval,
		opts:     newOptions(opts),
		reading:  primitives.NewObservable[float64](),
		history:  primitives.NewHistory(),
	}, nil
}

// NewVoltmeter creates a meter of the load voltage.
func NewVoltmeter(src Source, interval time.Duration, opts ...Option) (*Meter, error) {
	return NewMeter("voltmeter", UnitVolts, src, interval, VoltageProbe, opts...)
}

// NewAmmeter creates a meter of the load current.
func NewAmmeter(src Source, interval time.Duration, opts ...Option) (*Meter, error) {
	return NewMeter("ammeter", UnitMicroAmps, src, interval, CurrentProbe, opts...)
}

// Name implements realtime.Task.
func (m *Meter) Name() string { return m.name }

// Unit returns the display unit of the readings.
func (m *Meter) Unit() string { return m.unit }

// Interval implements realtime.Task.
func (m *Meter) Interval() time.Duration { return m.interval }

// Horizon implements realtime.Task.
func (m *Meter) Horizon() time.Duration { return m.opts.horizon }

// Tick implements realtime.Task by taking one sample at t.
func (m *Meter) Tick(ctx context.Context, t primitives.TimeStep) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Sample(t)
	return nil
}

// Sample reads the source, publishes the value and records it at time t.
// Listeners of Reading() run before the reading is appended.
func (m *Meter) Sample(t primitives.TimeStep) primitives.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.probe(m.src.Snapshot())
	m.reading.Set(v)

	r := primitives.NewReading(t, m.opts.clock.Now(), v)
	m.history.Append(r)

	m.opts.recorder.RecordReading(m.name, r)
	m.opts.logger.Log(context.Background(), m.opts.readingLevel(), "reading",
		"instrument", m.name,
		"t", t.String(),
		"stamp", r.Stamp(),
		"value", v,
		"unit", m.unit)
	return r
}

// AttachTo makes the meter sample whenever c publishes a time step that falls
// on the meter's interval and within its horizon.
func (m *Meter) AttachTo(c *Circuit) {
	step := primitives.FromDuration(m.interval)
	horizon := primitives.FromDuration(m.opts.horizon)
	ts := c.TimeStep()
	ts.Register(func() {
		t, ok := ts.Get()
		if !ok || t%step != 0 || t > horizon {
			return
		}
		m.Sample(t)
	})
}

// Reading returns the Observable carrying the latest sampled value.
func (m *Meter) Reading() *primitives.Observable[float64] {
	return m.reading
}

// Last returns the most recent reading, or primitives.ErrEmptyHistory.
func (m *Meter) Last() (primitives.Reading, error) {
	return m.history.Last()
}

// History returns every reading in time-step order.
func (m *Meter) History() []primitives.Reading {
	return m.history.All()
}

// Reset clears the history and makes the published value absent.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
	m.reading.Clear()
}

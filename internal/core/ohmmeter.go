package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

// KiloOhmScale converts volts per microampere to kilo-ohms.
const KiloOhmScale = 1e3

// Ohmmeter is a derived instrument. It recomputes V/I whenever either of its
// dependencies publishes a new value, and reports on its own cadence what its
// Estimator makes of the observed pairs.
//
// Reporting starts only once both dependencies have published a usable pair;
// readiness never goes back to false except through Reset.
type Ohmmeter struct {
	name     string
	voltage  *primitives.Observable[float64]
	current  *primitives.Observable[float64]
	est      Estimator
	interval time.Duration
	opts     options

	mu       sync.Mutex
	ready    bool
	value    float64
	hasValue bool
	history  *primitives.History
}

// NewOhmmeter creates a derived instrument over a voltage (V) and a current
// (uA) Observable and registers on both. A nil est reports the instantaneous
// value.
func NewOhmmeter(name string, voltage, current *primitives.Observable[float64], est Estimator, interval time.Duration, opts ...Option) (*Ohmmeter, error) {
	if voltage == nil || current == nil {
		return nil, fmt.Errorf("ohmmeter %s: missing dependency", name)
	}
	if primitives.FromDuration(interval) <= 0 {
		return nil, fmt.Errorf("ohmmeter %s: interval must be at least 1ms, got %v", name, interval)
	}
	o := &Ohmmeter{
		name:     name,
		voltage:  voltage,
		current:  current,
		est:      est,
		interval: interval,
		opts:     newOptions(opts),
		history:  primitives.NewHistory(),
	}
	voltage.Register(o.onDependencyChanged)
	current.Register(o.onDependencyChanged)
	return o, nil
}

func (o *Ohmmeter) onDependencyChanged() {
	v, okV := o.voltage.Get()
	i, okI := o.current.Get()
	if !okV || !okI {
		return
	}
	if i == 0 {
		o.opts.logger.Debug("zero current, value not updated", "instrument", o.name)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.value = KiloOhmScale * v / i
	o.hasValue = true
	o.ready = true
	if o.est != nil {
		o.est.Observe(v, i)
	}
}

// Name implements realtime.Task.
func (o *Ohmmeter) Name() string { return o.name }

// Unit returns the display unit of the reports.
func (o *Ohmmeter) Unit() string { return UnitKiloOhms }

// Interval implements realtime.Task.
func (o *Ohmmeter) Interval() time.Duration { return o.interval }

// Horizon implements realtime.Task.
func (o *Ohmmeter) Horizon() time.Duration { return o.opts.horizon }

// Estimator returns the strategy the reports are computed with.
func (o *Ohmmeter) Estimator() Estimator { return o.est }

// Tick implements realtime.Task as one report tick. Before readiness nothing is
// reported. An estimate that cannot be computed skips the tick; it is not an
// error for the run.
func (o *Ohmmeter) Tick(ctx context.Context, t primitives.TimeStep) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return nil
	}
	est, err := o.estimate()
	if err != nil {
		o.mu.Unlock()
		if errors.Is(err, primitives.ErrDivisionByZero) || errors.Is(err, primitives.ErrEmptyHistory) {
			o.opts.logger.Warn("report skipped", "instrument", o.name, "t", t.String(), "error", err)
			o.opts.recorder.RecordSkip(o.name, skipReason(err))
			return nil
		}
		return fmt.Errorf("ohmmeter %s: %w", o.name, err)
	}
	r := primitives.NewReading(t, o.opts.clock.Now(), est)
	o.history.Append(r)
	o.mu.Unlock()

	o.opts.recorder.RecordReading(o.name, r)
	o.opts.logger.Log(ctx, o.opts.readingLevel(), "reading",
		"instrument", o.name,
		"t", t.String(),
		"stamp", r.Stamp(),
		"value", est,
		"unit", UnitKiloOhms)

	if o.opts.publisher != nil {
		report := Report{Instrument: o.name, Unit: UnitKiloOhms, Reading: r}
		if err := o.opts.publisher.Publish(ctx, report); err != nil {
			o.opts.logger.Warn("publish failed", "instrument", o.name, "error", err)
		}
	}
	return nil
}

func (o *Ohmmeter) estimate() (float64, error) {
	if o.est == nil {
		return o.value, nil
	}
	return o.est.Estimate()
}

func skipReason(err error) string {
	if errors.Is(err, primitives.ErrDivisionByZero) {
		return "division_by_zero"
	}
	return "empty_history"
}

// Ready reports whether both dependencies have published a usable pair.
func (o *Ohmmeter) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

// Value returns the latest instantaneous V/I in kilo-ohms.
func (o *Ohmmeter) Value() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value, o.hasValue
}

// Last returns the most recent report, or primitives.ErrEmptyHistory.
func (o *Ohmmeter) Last() (primitives.Reading, error) {
	return o.history.Last()
}

// History returns every report in time-step order.
func (o *Ohmmeter) History() []primitives.Reading {
	return o.history.All()
}

// Reset clears readiness, the value, the reports and the estimator.
func (o *Ohmmeter) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ready = false
	o.value = 0
	o.hasValue = false
	o.history.Clear()
	if o.est != nil {
		o.est.Reset()
	}
}

// Package extensibility holds the estimation strategies a derived instrument
// can report with.
package extensibility

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/logging"
	"github.com/comalice/circuitx/internal/primitives"
)

// Default rolling windows, in samples.
const (
	DefaultVoltageWindow = 10
	DefaultCurrentWindow = 6
)

// InstantEstimator reports V/I of the last observed pair, in kilo-ohms.
type InstantEstimator struct {
	v, i float64
	seen bool
}

// NewInstantEstimator creates an InstantEstimator.
func NewInstantEstimator() *InstantEstimator {
	return &InstantEstimator{}
}

// Observe implements core.Estimator.
func (e *InstantEstimator) Observe(v, i float64) {
	e.v, e.i, e.seen = v, i, true
}

// Estimate implements core.Estimator.
func (e *InstantEstimator) Estimate() (float64, error) {
	if !e.seen {
		return 0, primitives.ErrEmptyHistory
	}
	if e.i == 0 {
		return 0, primitives.ErrDivisionByZero
	}
	return core.KiloOhmScale * e.v / e.i, nil
}

// Reset implements core.Estimator.
func (e *InstantEstimator) Reset() {
	*e = InstantEstimator{}
}

// WindowedEstimator averages the trailing VoltageWindow voltages and the
// trailing CurrentWindow currents separately and reports the ratio of the two
// means. The windows are independent; with a short history each averages what
// exists.
type WindowedEstimator struct {
	VoltageWindow int
	CurrentWindow int

	history *primitives.PairHistory
}

// NewWindowedEstimator creates a WindowedEstimator. Windows must be at least 1.
func NewWindowedEstimator(voltageWindow, currentWindow int) (*WindowedEstimator, error) {
	if voltageWindow < 1 || currentWindow < 1 {
		return nil, fmt.Errorf("rolling windows must be at least 1, got voltage=%d current=%d", voltageWindow, currentWindow)
	}
	return &WindowedEstimator{
		VoltageWindow: voltageWindow,
		CurrentWindow: currentWindow,
		history:       primitives.NewPairHistory(),
	}, nil
}

// Observe implements core.Estimator.
func (e *WindowedEstimator) Observe(v, i float64) {
	e.history.Append(v, i)
}

// Estimate implements core.Estimator.
func (e *WindowedEstimator) Estimate() (float64, error) {
	if e.history.Len() == 0 {
		return 0, primitives.ErrEmptyHistory
	}
	meanV := stat.Mean(e.history.TailVoltage(e.VoltageWindow), nil)
	meanI := stat.Mean(e.history.TailCurrent(e.CurrentWindow), nil)
	if meanI == 0 {
		return 0, primitives.ErrDivisionByZero
	}
	return core.KiloOhmScale * meanV / meanI, nil
}

// Reset implements core.Estimator.
func (e *WindowedEstimator) Reset() {
	e.history.Clear()
}

// Observed returns every pair seen since the last Reset.
func (e *WindowedEstimator) Observed() []primitives.Pair {
	return e.history.Pairs()
}

// LoggingEstimator wraps an Estimator and logs every estimate at trace level.
type LoggingEstimator struct {
	inner  core.Estimator
	name   string
	logger *slog.Logger
}

// NewLoggingEstimator creates a LoggingEstimator wrapping inner.
func NewLoggingEstimator(inner core.Estimator, name string, logger *slog.Logger) *LoggingEstimator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LoggingEstimator{inner: inner, name: name, logger: logger}
}

// Observe implements core.Estimator.
func (e *LoggingEstimator) Observe(v, i float64) {
	e.inner.Observe(v, i)
}

// Estimate logs the result of the inner estimate.
func (e *LoggingEstimator) Estimate() (float64, error) {
	start := time.Now()
	value, err := e.inner.Estimate()
	e.logger.Log(context.Background(), logging.LevelTrace, "estimate",
		"instrument", e.name,
		"value", value,
		"error", err,
		"took", time.Since(start))
	return value, err
}

// Reset implements core.Estimator.
func (e *LoggingEstimator) Reset() {
	e.logger.Debug("estimator reset", "instrument", e.name)
	e.inner.Reset()
}

// Unwrap returns the wrapped Estimator.
func (e *LoggingEstimator) Unwrap() core.Estimator {
	return e.inner
}

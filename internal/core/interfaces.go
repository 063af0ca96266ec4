// Package core provides the simulation core: the circuit state engine, the
// sampling instruments and the derived instruments built on top of them.
//
// Pluggable components are declared here and implemented elsewhere:
// estimation strategies in internal/extensibility, metrics and report
// publishing in internal/production.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

// Source is what a sampling instrument reads from.
type Source interface {
	Snapshot() State
}

// Clock stamps readings with wall-clock time.
type Clock interface {
	Now() time.Time
}

// Estimator turns the stream of complete (V, I) observations of a derived
// instrument into the value it reports. Observe and Estimate are serialised by
// the instrument.
type Estimator interface {
	Observe(v, i float64)
	Estimate() (float64, error)
	Reset()
}

// Recorder receives every state change and reading, for metrics.
type Recorder interface {
	RecordTick(s State)
	RecordReading(instrument string, r primitives.Reading)
	RecordSkip(instrument, reason string)
}

// Report is one published instrument reading.
type Report struct {
	Instrument string             `json:"instrument" yaml:"instrument"`
	Unit       string             `json:"unit" yaml:"unit"`
	Reading    primitives.Reading `json:"reading" yaml:"reading"`
}

// Publisher forwards reports to a consumer such as a display.
type Publisher interface {
	Publish(ctx context.Context, report Report) error
	Close() error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type nopRecorder struct{}

func (nopRecorder) RecordTick(State)                        {}
func (nopRecorder) RecordReading(string, primitives.Reading) {}
func (nopRecorder) RecordSkip(string, string)               {}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

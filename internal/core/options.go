package core

import (
	"log/slog"
	"time"
)

// DefaultHorizon is the simulated run length used when none is configured.
const DefaultHorizon = 10 * time.Second

type options struct {
	logger    *slog.Logger
	clock     Clock
	recorder  Recorder
	publisher Publisher
	horizon   time.Duration
	debug     bool
}

// Option applies configuration to a component via the functional options pattern.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{
		logger:   discardLogger(),
		clock:    systemClock{},
		recorder: nopRecorder{},
		horizon:  DefaultHorizon,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger configures the component's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock configures the clock used for reading timestamps.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRecorder configures a metrics Recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPublisher configures where derived instruments send their reports.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.publisher = p
	}
}

// WithHorizon sets the last simulated time (inclusive) an instrument runs at.
// The circuit takes its horizon from CircuitConfig instead.
func WithHorizon(d time.Duration) Option {
	return func(o *options) {
		o.horizon = d
	}
}

// WithDebug logs every reading at info level instead of debug.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

func (o options) readingLevel() slog.Level {
	if o.debug {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Package circuitx simulates a time-varying resistive divider observed by
// instruments that sample it at independent cadences.
//
// R1 grows and R2 shrinks linearly with simulated time while a fixed load RL
// sits in parallel with R2. A voltmeter and an ammeter sample the load; an
// ohmmeter derives V/I from their latest readings and a rolling ohmmeter
// reports windowed averages.
//
// Example:
//
//	cfg := circuitx.Default()
//	cfg.Scheduler.Unpaced = true
//	sim, err := circuitx.New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := sim.Run(ctx); err != nil {
//		return err
//	}
//	report := sim.Report()
package circuitx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/extensibility"
	"github.com/comalice/circuitx/internal/logging"
	"github.com/comalice/circuitx/internal/production"
	"github.com/comalice/circuitx/realtime"
)

// Instrument names.
const (
	NameCircuit         = "circuit"
	NameVoltmeter       = "voltmeter"
	NameAmmeter         = "ammeter"
	NameOhmmeter        = "ohmmeter"
	NameRollingOhmmeter = "rolling_ohmmeter"
)

// Task priorities: within one simulated instant the circuit moves first, then
// the meters sample it, then the derived instruments report.
const (
	priorityCircuit = 4 - iota
	priorityVoltmeter
	priorityAmmeter
	priorityOhmmeter
	priorityRolling
)

var (
	ErrRunning    = errors.New("simulation is running")
	ErrNeedsReset = errors.New("simulation already ran; call Reset or Restart")
)

type (
	RunReport     = production.RunReport
	InstrumentRun = production.InstrumentRun
	Topology      = production.Topology
	Series        = production.Series
	Report        = core.Report
	State         = core.State
)

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets a metrics recorder, such as production.Metrics.
func WithRecorder(r core.Recorder) Option {
	return func(s *Simulation) {
		s.recorder = r
	}
}

// WithPublisher sets where the ohmmeters send their reports.
func WithPublisher(p core.Publisher) Option {
	return func(s *Simulation) {
		s.publisher = p
	}
}

// WithClock sets the clock used for pacing and reading timestamps.
func WithClock(c realtime.Clock) Option {
	return func(s *Simulation) {
		if c != nil {
			s.clock = c
		}
	}
}

// Simulation wires a circuit to its instruments and runs them.
type Simulation struct {
	cfg       Config
	logger    *slog.Logger
	recorder  core.Recorder
	publisher core.Publisher
	clock     realtime.Clock

	circuit   *core.Circuit
	voltmeter *core.Meter
	ammeter   *core.Meter
	ohmmeter  *core.Ohmmeter
	rolling   *core.Ohmmeter
	windowed  *extensibility.WindowedEstimator

	mu         sync.Mutex
	running    bool
	ran        bool
	stopped    bool
	cancel     context.CancelFunc
	ticks      uint64
	startedAt  time.Time
	finishedAt time.Time
	runErr     error
}

// New validates cfg and builds the simulation.
func New(cfg *Config, opts ...Option) (*Simulation, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Simulation{
		cfg:    *cfg,
		logger: logging.Discard(),
		clock:  realtime.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	circuitCfg := cfg.coreCircuit().WithDefaults()
	common := []core.Option{
		core.WithLogger(s.logger),
		core.WithClock(s.clock),
		core.WithRecorder(s.recorder),
		core.WithHorizon(circuitCfg.Horizon),
	}
	with := func(in InstrumentConfig, extra ...core.Option) []core.Option {
		o := append([]core.Option{}, common...)
		o = append(o, core.WithDebug(in.Debug))
		return append(o, extra...)
	}

	var err error
	if s.circuit, err = core.NewCircuit(circuitCfg, common...); err != nil {
		return nil, err
	}
	ins := cfg.Instruments
	if s.voltmeter, err = core.NewVoltmeter(s.circuit, ins.Voltmeter.Interval, with(ins.Voltmeter)...); err != nil {
		return nil, err
	}
	if s.ammeter, err = core.NewAmmeter(s.circuit, ins.Ammeter.Interval, with(ins.Ammeter)...); err != nil {
		return nil, err
	}

	if s.windowed, err = extensibility.NewWindowedEstimator(ins.Rolling.VoltageWindow, ins.Rolling.CurrentWindow); err != nil {
		return nil, err
	}
	publish := core.WithPublisher(s.publisher)
	if s.ohmmeter, err = core.NewOhmmeter(NameOhmmeter, s.voltmeter.Reading(), s.ammeter.Reading(),
		extensibility.NewInstantEstimator(), ins.Ohmmeter.Interval, with(ins.Ohmmeter, publish)...); err != nil {
		return nil, err
	}
	if s.rolling, err = core.NewOhmmeter(NameRollingOhmmeter, s.voltmeter.Reading(), s.ammeter.Reading(),
		extensibility.NewLoggingEstimator(s.windowed, NameRollingOhmmeter, s.logger),
		ins.RollingOhmmeter.Interval, with(ins.RollingOhmmeter, publish)...); err != nil {
		return nil, err
	}

	if s.triggered() {
		s.voltmeter.AttachTo(s.circuit)
		s.ammeter.AttachTo(s.circuit)
	}
	return s, nil
}

func (s *Simulation) triggered() bool {
	return s.cfg.Sampling == SamplingTriggered
}

// Run drives the simulation from t=0 to the horizon. It returns nil when the
// horizon is reached or Stop is called, and the first fatal error otherwise.
// A finished simulation must be Reset before it can run again.
func (s *Simulation) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	if s.ran {
		s.mu.Unlock()
		return ErrNeedsReset
	}
	sched, err := s.scheduler()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopped = false
	s.cancel = cancel
	s.startedAt = s.clock.Now()
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("simulation started",
		"mode", s.cfg.Scheduler.Mode,
		"sampling", s.cfg.Sampling,
		"horizon", s.circuit.Horizon())

	err = sched.Run(runCtx)

	s.mu.Lock()
	stopped := s.stopped
	s.running = false
	s.ran = true
	s.cancel = nil
	s.ticks = sched.TickNumber()
	s.finishedAt = s.clock.Now()
	if stopped && errors.Is(err, context.Canceled) {
		err = nil
	}
	s.runErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("simulation failed", "error", err)
		return fmt.Errorf("simulation: %w", err)
	}
	s.logger.Info("simulation finished",
		"ticks", sched.TickNumber(),
		"stopped", stopped,
		"t", s.circuit.Snapshot().TimeStep.String())
	return nil
}

func (s *Simulation) scheduler() (*realtime.Scheduler, error) {
	sched := realtime.NewScheduler(realtime.Config{
		Mode:    s.cfg.schedulerMode(),
		Speed:   s.cfg.Scheduler.Speed,
		Unpaced: s.cfg.Scheduler.Unpaced,
		Clock:   s.clock,
		Logger:  s.logger,
	})

	type scheduled struct {
		task     realtime.Task
		priority int
	}
	tasks := []scheduled{
		{s.circuit, priorityCircuit},
		{s.ohmmeter, priorityOhmmeter},
		{s.rolling, priorityRolling},
	}
	if !s.triggered() {
		tasks = append(tasks,
			scheduled{s.voltmeter, priorityVoltmeter},
			scheduled{s.ammeter, priorityAmmeter})
	}
	for _, t := range tasks {
		if err := sched.AddWithPriority(t.task, t.priority); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Stop ends a run in progress. Run then returns nil.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.stopped = true
		s.cancel()
	}
}

// Reset puts the circuit back at t=0 and clears every instrument.
//
// Unlike Circuit.Reset, which leaves the time-step Observable at 0, Reset
// clears it: Circuit().TimeStep().Get() reports no value until the next run
// publishes t=0, which is what makes triggered meters sample t=0 again.
func (s *Simulation) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	s.circuit.Reset()
	s.circuit.TimeStep().Clear()
	s.voltmeter.Reset()
	s.ammeter.Reset()
	s.ohmmeter.Reset()
	s.rolling.Reset()

	s.ran = false
	s.ticks = 0
	s.runErr = nil
	s.startedAt, s.finishedAt = time.Time{}, time.Time{}
	s.logger.Info("simulation reset")
	return nil
}

// Restart resets the simulation and runs it again.
func (s *Simulation) Restart(ctx context.Context) error {
	if err := s.Reset(); err != nil {
		return err
	}
	return s.Run(ctx)
}

// Config returns the configuration the simulation was built from.
func (s *Simulation) Config() Config { return s.cfg }

// Circuit returns the circuit state engine.
func (s *Simulation) Circuit() *core.Circuit { return s.circuit }

// Voltmeter returns the load voltage meter.
func (s *Simulation) Voltmeter() *core.Meter { return s.voltmeter }

// Ammeter returns the load current meter.
func (s *Simulation) Ammeter() *core.Meter { return s.ammeter }

// Ohmmeter returns the instantaneous ohmmeter.
func (s *Simulation) Ohmmeter() *core.Ohmmeter { return s.ohmmeter }

// RollingOhmmeter returns the windowed ohmmeter.
func (s *Simulation) RollingOhmmeter() *core.Ohmmeter { return s.rolling }

// Report summarises the last run.
func (s *Simulation) Report() RunReport {
	s.mu.Lock()
	report := RunReport{
		Mode:       s.cfg.schedulerMode().String(),
		Config:     s.cfg.Digest(),
		Horizon:    s.circuit.Horizon(),
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	if s.runErr != nil {
		report.Error = s.runErr.Error()
	}
	s.mu.Unlock()

	report.Final = s.circuit.Snapshot()
	for _, m := range []*core.Meter{s.voltmeter, s.ammeter} {
		report.Instruments = append(report.Instruments, InstrumentRun{
			Name:     m.Name(),
			Unit:     m.Unit(),
			Interval: m.Interval(),
			Readings: m.History(),
		})
	}
	for _, o := range []*core.Ohmmeter{s.ohmmeter, s.rolling} {
		ready := o.Ready()
		report.Instruments = append(report.Instruments, InstrumentRun{
			Name:     o.Name(),
			Unit:     o.Unit(),
			Interval: o.Interval(),
			Ready:    &ready,
			Readings: o.History(),
		})
	}
	return report
}

// Ticks returns how many task ticks the last run executed.
func (s *Simulation) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Series returns the reading history of every instrument, for charting.
func (s *Simulation) Series() []Series {
	report := s.Report()
	out := make([]Series, 0, len(report.Instruments))
	for _, in := range report.Instruments {
		out = append(out, Series{Name: in.Name, Unit: in.Unit, Readings: in.Readings})
	}
	return out
}

// Topology describes the wiring of the simulation.
func (s *Simulation) Topology() Topology {
	_, ticked := s.circuit.TimeStep().Get()
	t := Topology{
		Nodes: []production.Node{
			{Name: NameCircuit, Kind: production.KindCircuit, Interval: s.circuit.Interval(), Active: ticked},
			{Name: NameVoltmeter, Kind: production.KindMeter, Unit: s.voltmeter.Unit(),
				Interval: s.voltmeter.Interval(), Active: len(s.voltmeter.History()) > 0},
			{Name: NameAmmeter, Kind: production.KindMeter, Unit: s.ammeter.Unit(),
				Interval: s.ammeter.Interval(), Active: len(s.ammeter.History()) > 0},
			{Name: NameOhmmeter, Kind: production.KindDerived, Unit: s.ohmmeter.Unit(),
				Interval: s.ohmmeter.Interval(), Active: s.ohmmeter.Ready()},
			{Name: NameRollingOhmmeter, Kind: production.KindDerived, Unit: s.rolling.Unit(),
				Interval: s.rolling.Interval(), Active: s.rolling.Ready()},
		},
	}

	source := "snapshot"
	if s.triggered() {
		source = "time_step"
	}
	for _, meter := range []string{NameVoltmeter, NameAmmeter} {
		t.Edges = append(t.Edges, production.Edge{From: NameCircuit, To: meter, Label: source})
	}
	for _, derived := range []string{NameOhmmeter, NameRollingOhmmeter} {
		t.Edges = append(t.Edges,
			production.Edge{From: NameVoltmeter, To: derived, Label: "V"},
			production.Edge{From: NameAmmeter, To: derived, Label: "I"})
	}
	return t
}

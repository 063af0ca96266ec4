package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/comalice/circuitx/internal/primitives"
)

// Circuit defaults, matching the reference divider.
const (
	DefaultLoad     = 30000.0 // RL, ohms
	DefaultSource   = 10.0    // Vs, volts
	DefaultRate     = 10.0    // ohms per simulated millisecond
	DefaultTickSize = 100 * time.Millisecond
)

// CircuitConfig holds the fixed parameters of one run.
//
// R1 grows and R2 shrinks linearly with simulated time:
//
//	R1(t) = R1 + Rate*t
//	R2(t) = R2 - Rate*t
type CircuitConfig struct {
	R1       float64       // initial R1, ohms
	R2       float64       // initial R2, ohms
	RL       float64       // load, ohms
	Vs       float64       // source, volts
	Rate     float64       // ohms per simulated millisecond
	TickSize time.Duration // default: 100ms
	Horizon  time.Duration // inclusive; 0 runs the t=0 tick only
}

// WithDefaults fills a zero TickSize with its default. A zero Horizon is kept.
func (c CircuitConfig) WithDefaults() CircuitConfig {
	if c.TickSize == 0 {
		c.TickSize = DefaultTickSize
	}
	return c
}

// Resistances returns R1 and R2 at simulated time t.
func (c CircuitConfig) Resistances(t primitives.TimeStep) (r1, r2 float64) {
	delta := c.Rate * float64(t)
	return c.R1 + delta, c.R2 - delta
}

// CheckHorizon verifies that R1 and R2 stay non-negative from t=0 through the
// horizon. Both are linear in t, so checking the two ends is enough.
func (c CircuitConfig) CheckHorizon() error {
	c = c.WithDefaults()
	for _, t := range []primitives.TimeStep{0, primitives.FromDuration(c.Horizon)} {
		if err := c.checkAt(t); err != nil {
			return err
		}
	}
	return nil
}

func (c CircuitConfig) checkAt(t primitives.TimeStep) error {
	r1, r2 := c.Resistances(t)
	if r1 < 0 {
		return &primitives.InvariantError{Field: "R1", TimeStep: t, Value: r1}
	}
	if r2 < 0 {
		return &primitives.InvariantError{Field: "R2", TimeStep: t, Value: r2}
	}
	return nil
}

// State is a consistent snapshot of the circuit after one tick.
type State struct {
	TimeStep    primitives.TimeStep `json:"time_step" yaml:"time_step"`
	R1          float64             `json:"r1" yaml:"r1"`
	R2          float64             `json:"r2" yaml:"r2"`
	RL          float64             `json:"rl" yaml:"rl"`
	Vs          float64             `json:"vs" yaml:"vs"`
	RParallel   float64             `json:"r_parallel" yaml:"r_parallel"`
	LoadVoltage float64             `json:"load_voltage" yaml:"load_voltage"`
}

// MarshalJSON encodes an open branch (RParallel = +Inf) as a null r_parallel.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	out := struct {
		plain
		RParallel *float64 `json:"r_parallel"`
	}{plain: plain(s)}
	if !math.IsInf(s.RParallel, 0) {
		out.RParallel = &s.RParallel
	}
	return json.Marshal(out)
}

// LoadCurrent returns the current through RL in amperes. A zero-ohm load
// carries the whole series current Vs/R1.
func (s State) LoadCurrent() float64 {
	if s.RL != 0 {
		return s.LoadVoltage / s.RL
	}
	if s.R1 == 0 {
		return math.Inf(1)
	}
	return s.Vs / s.R1
}

// ParallelResistance combines a and b in parallel. When a+b is zero the branch
// is treated as open and the result is +Inf.
func ParallelResistance(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return math.Inf(1)
	}
	return (a * b) / sum
}

// LoadVoltage returns the share of vs across rp when rp is in series with r1.
// An open branch (rp = +Inf) carries no current, so the full source appears
// across it; a zero total resistance shorts the source and leaves nothing.
func LoadVoltage(vs, r1, rp float64) float64 {
	if math.IsInf(rp, 1) {
		return vs
	}
	total := r1 + rp
	if total == 0 {
		return 0
	}
	return vs * rp / total
}

// Circuit is the state engine of the divider. It is the single writer of the
// circuit state; instruments only read Snapshots.
//
// The simulated time step is published through an Observable after the new
// state is committed, so synchronous listeners always see the full update.
type Circuit struct {
	cfg  CircuitConfig
	opts options

	mu    sync.RWMutex
	state State

	timeStep *primitives.Observable[primitives.TimeStep]
}

// NewCircuit creates a circuit in its t=0 state. The time-step Observable
// stays absent until the first AdvanceTo.
func NewCircuit(cfg CircuitConfig, opts ...Option) (*Circuit, error) {
	cfg = cfg.WithDefaults()
	if primitives.FromDuration(cfg.TickSize) <= 0 {
		return nil, fmt.Errorf("tick size must be at least 1ms, got %v", cfg.TickSize)
	}
	if cfg.Horizon < 0 {
		return nil, fmt.Errorf("horizon must be non-negative, got %v", cfg.Horizon)
	}

	c := &Circuit{
		cfg:      cfg,
		opts:     newOptions(opts),
		timeStep: primitives.NewObservable[primitives.TimeStep](),
	}
	state, err := c.compute(0)
	if err != nil {
		return nil, err
	}
	c.state = state
	return c, nil
}

// Name implements realtime.Task.
func (c *Circuit) Name() string { return "circuit" }

// Interval implements realtime.Task.
func (c *Circuit) Interval() time.Duration { return c.cfg.TickSize }

// Horizon implements realtime.Task.
func (c *Circuit) Horizon() time.Duration { return c.cfg.Horizon }

// Tick implements realtime.Task by advancing to t.
func (c *Circuit) Tick(_ context.Context, t primitives.TimeStep) error {
	return c.AdvanceTo(t)
}

// Config returns the circuit parameters.
func (c *Circuit) Config() CircuitConfig {
	return c.cfg
}

// TimeStep returns the Observable carrying the latest simulated time.
func (c *Circuit) TimeStep() *primitives.Observable[primitives.TimeStep] {
	return c.timeStep
}

// Snapshot returns the current state.
func (c *Circuit) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AdvanceTo moves the circuit to simulated time t and publishes t.
//
// A negative R1 or R2 is an invariant failure: the state is left untouched and
// an *primitives.InvariantError is returned. It signals a rate/horizon mismatch
// and must stop the run.
func (c *Circuit) AdvanceTo(t primitives.TimeStep) error {
	state, err := c.compute(t)
	if err != nil {
		c.opts.logger.Error("circuit invariant violated", "error", err)
		return err
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.opts.recorder.RecordTick(state)
	c.opts.logger.Debug("circuit advanced",
		"t", state.TimeStep.String(),
		"r1", state.R1,
		"r2", state.R2,
		"r_parallel", state.RParallel,
		"v_l", state.LoadVoltage)

	// Published last, outside the lock: listeners may take Snapshots.
	c.timeStep.Set(t)
	return nil
}

// Reset restores the t=0 state and sets the time step back to 0. Instruments
// keep their histories; reset them separately.
func (c *Circuit) Reset() {
	state, err := c.compute(0)
	if err != nil {
		// NewCircuit already proved t=0 valid.
		panic(errors.Join(errors.New("circuit reset"), err))
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.opts.logger.Info("circuit reset", "r1", state.R1, "r2", state.R2)
	c.timeStep.Set(0)
}

func (c *Circuit) compute(t primitives.TimeStep) (State, error) {
	if err := c.cfg.checkAt(t); err != nil {
		return State{}, err
	}
	r1, r2 := c.cfg.Resistances(t)
	rp := ParallelResistance(r2, c.cfg.RL)
	return State{
		TimeStep:    t,
		R1:          r1,
		R2:          r2,
		RL:          c.cfg.RL,
		Vs:          c.cfg.Vs,
		RParallel:   rp,
		LoadVoltage: LoadVoltage(c.cfg.Vs, r1, rp),
	}, nil
}

// Package builder assembles simulation configurations from functional options.
package builder

import (
	"time"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/realtime"
)

// Option adjusts a configuration.
type Option func(*circuitx.Config)

// New starts from the reference configuration and applies opts in order.
// The result is not validated.
func New(opts ...Option) *circuitx.Config {
	cfg := circuitx.Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Build is New followed by Validate.
func Build(opts ...Option) (*circuitx.Config, error) {
	cfg := New(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Divider sets the initial values of R1 and R2, in ohms.
func Divider(r1, r2 float64) Option {
	return func(c *circuitx.Config) {
		c.Circuit.R1 = r1
		c.Circuit.R2 = r2
	}
}

// Load sets the load resistance, in ohms.
func Load(rl float64) Option {
	return func(c *circuitx.Config) { c.Circuit.RL = rl }
}

// Source sets the source voltage.
func Source(vs float64) Option {
	return func(c *circuitx.Config) { c.Circuit.Vs = vs }
}

// Rate sets the potentiometer rate in ohms per simulated millisecond.
func Rate(k float64) Option {
	return func(c *circuitx.Config) { c.Circuit.Rate = k }
}

// Tick sets the circuit time step.
func Tick(d time.Duration) Option {
	return func(c *circuitx.Config) { c.Circuit.Tick = d }
}

// Horizon sets how long the simulation runs.
func Horizon(d time.Duration) Option {
	return func(c *circuitx.Config) { c.Circuit.Horizon = d }
}

// Voltmeter sets the voltmeter interval.
func Voltmeter(every time.Duration) Option {
	return func(c *circuitx.Config) { c.Instruments.Voltmeter.Interval = every }
}

// Ammeter sets the ammeter interval.
func Ammeter(every time.Duration) Option {
	return func(c *circuitx.Config) { c.Instruments.Ammeter.Interval = every }
}

// Ohmmeter sets the instantaneous ohmmeter interval.
func Ohmmeter(every time.Duration) Option {
	return func(c *circuitx.Config) { c.Instruments.Ohmmeter.Interval = every }
}

// RollingOhmmeter sets the rolling ohmmeter interval and its averaging
// windows, in samples.
func RollingOhmmeter(every time.Duration, voltageWindow, currentWindow int) Option {
	return func(c *circuitx.Config) {
		c.Instruments.RollingOhmmeter.Interval = every
		c.Instruments.Rolling.VoltageWindow = voltageWindow
		c.Instruments.Rolling.CurrentWindow = currentWindow
	}
}

// Debug logs every reading of the named instruments at info level.
func Debug(names ...string) Option {
	return func(c *circuitx.Config) {
		for _, name := range names {
			switch name {
			case circuitx.NameVoltmeter:
				c.Instruments.Voltmeter.Debug = true
			case circuitx.NameAmmeter:
				c.Instruments.Ammeter.Debug = true
			case circuitx.NameOhmmeter:
				c.Instruments.Ohmmeter.Debug = true
			case circuitx.NameRollingOhmmeter:
				c.Instruments.RollingOhmmeter.Debug = true
			}
		}
	}
}

// Mode selects how the scheduler multiplexes tasks.
func Mode(m realtime.Mode) Option {
	return func(c *circuitx.Config) { c.Scheduler.Mode = m.String() }
}

// Speed sets simulated seconds per wall-clock second.
func Speed(x float64) Option {
	return func(c *circuitx.Config) {
		c.Scheduler.Speed = x
		c.Scheduler.Unpaced = false
	}
}

// Unpaced runs as fast as possible.
func Unpaced() Option {
	return func(c *circuitx.Config) { c.Scheduler.Unpaced = true }
}

// Triggered samples the meters on every circuit tick instead of scheduling them.
func Triggered() Option {
	return func(c *circuitx.Config) { c.Sampling = circuitx.SamplingTriggered }
}

// LogLevel sets the log level.
func LogLevel(level string) Option {
	return func(c *circuitx.Config) { c.Logging.Level = level }
}

package circuitx

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/extensibility"
	"github.com/comalice/circuitx/internal/logging"
	"github.com/comalice/circuitx/realtime"
)

// Sampling modes.
const (
	SamplingPolled    = "polled"    // meters are scheduled tasks
	SamplingTriggered = "triggered" // meters sample on circuit ticks
)

// Config is the full configuration of one simulation.
type Config struct {
	Circuit     CircuitConfig     `json:"circuit" yaml:"circuit"`
	Instruments InstrumentsConfig `json:"instruments" yaml:"instruments"`
	Scheduler   SchedulerConfig   `json:"scheduler" yaml:"scheduler"`
	Sampling    string            `json:"sampling" yaml:"sampling"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
}

// CircuitConfig configures the divider.
type CircuitConfig struct {
	R1      float64       `json:"r1" yaml:"r1"`           // initial, ohms
	R2      float64       `json:"r2" yaml:"r2"`           // initial, ohms
	RL      float64       `json:"rl" yaml:"rl"`           // load, ohms
	Vs      float64       `json:"vs" yaml:"vs"`           // source, volts
	Rate    float64       `json:"rate" yaml:"rate"`       // ohms per simulated millisecond
	Tick    time.Duration `json:"tick" yaml:"tick"`       // circuit time step
	Horizon time.Duration `json:"horizon" yaml:"horizon"` // inclusive; 0 runs t=0 only
}

// InstrumentConfig configures one instrument.
type InstrumentConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Debug logs every reading at info level.
	Debug bool `json:"debug" yaml:"debug"`
}

// RollingConfig sets the averaging windows of the rolling ohmmeter, in samples.
type RollingConfig struct {
	VoltageWindow int `json:"voltage_window" yaml:"voltage_window"`
	CurrentWindow int `json:"current_window" yaml:"current_window"`
}

// InstrumentsConfig configures every instrument.
type InstrumentsConfig struct {
	Voltmeter       InstrumentConfig `json:"voltmeter" yaml:"voltmeter"`
	Ammeter         InstrumentConfig `json:"ammeter" yaml:"ammeter"`
	Ohmmeter        InstrumentConfig `json:"ohmmeter" yaml:"ohmmeter"`
	RollingOhmmeter InstrumentConfig `json:"rolling_ohmmeter" yaml:"rolling_ohmmeter"`
	Rolling         RollingConfig    `json:"rolling" yaml:"rolling"`
}

// SchedulerConfig configures how tasks are run.
type SchedulerConfig struct {
	Mode    string  `json:"mode" yaml:"mode"`       // cooperative or parallel
	Speed   float64 `json:"speed" yaml:"speed"`     // simulated seconds per wall-clock second
	Unpaced bool    `json:"unpaced" yaml:"unpaced"` // run as fast as possible
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level: "info" (default), "debug", "trace", "warn" or "error".
	Level string `json:"level" yaml:"level"`
}

// Default returns the reference configuration: R1 from 0 and R2 from 100 kOhm
// at 10 Ohm/ms over 10 s, with the voltmeter every 100 ms, the ammeter every
// 300 ms and the ohmmeters every 1 s and 2 s.
func Default() *Config {
	return &Config{
		Circuit: CircuitConfig{
			R1:      0,
			R2:      100000,
			RL:      core.DefaultLoad,
			Vs:      core.DefaultSource,
			Rate:    core.DefaultRate,
			Tick:    core.DefaultTickSize,
			Horizon: core.DefaultHorizon,
		},
		Instruments: InstrumentsConfig{
			Voltmeter:       InstrumentConfig{Interval: 100 * time.Millisecond},
			Ammeter:         InstrumentConfig{Interval: 300 * time.Millisecond},
			Ohmmeter:        InstrumentConfig{Interval: time.Second},
			RollingOhmmeter: InstrumentConfig{Interval: 2 * time.Second, Debug: true},
			Rolling: RollingConfig{
				VoltageWindow: extensibility.DefaultVoltageWindow,
				CurrentWindow: extensibility.DefaultCurrentWindow,
			},
		},
		Scheduler: SchedulerConfig{
			Mode:  realtime.ModeCooperative.String(),
			Speed: 1,
		},
		Sampling: SamplingPolled,
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load builds a configuration from defaults, then the YAML file at path if
// path is not empty, then environment variables.
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a YAML file. Fields the file omits
// keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Digest identifies the configuration: the first 8 bytes of the SHA-256 of
// its JSON encoding, in hex. Equal configurations have equal digests.
func (c *Config) Digest() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "invalid"
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// Validate checks that the configuration is valid, including that R1 and R2
// stay non-negative until the horizon.
func (c *Config) Validate() error {
	if c.Circuit.Tick < time.Millisecond {
		return fmt.Errorf("circuit tick must be at least 1ms, got %v", c.Circuit.Tick)
	}
	if c.Circuit.Horizon < 0 {
		return fmt.Errorf("circuit horizon must be non-negative, got %v", c.Circuit.Horizon)
	}
	if c.Circuit.RL < 0 {
		return fmt.Errorf("circuit rl must be non-negative, got %g", c.Circuit.RL)
	}
	if err := c.coreCircuit().CheckHorizon(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}

	for name, in := range map[string]InstrumentConfig{
		"voltmeter":        c.Instruments.Voltmeter,
		"ammeter":          c.Instruments.Ammeter,
		"ohmmeter":         c.Instruments.Ohmmeter,
		"rolling_ohmmeter": c.Instruments.RollingOhmmeter,
	} {
		if in.Interval < time.Millisecond {
			return fmt.Errorf("%s interval must be at least 1ms, got %v", name, in.Interval)
		}
	}
	if c.Instruments.Rolling.VoltageWindow < 1 || c.Instruments.Rolling.CurrentWindow < 1 {
		return fmt.Errorf("rolling windows must be at least 1, got voltage=%d current=%d",
			c.Instruments.Rolling.VoltageWindow, c.Instruments.Rolling.CurrentWindow)
	}

	if _, err := realtime.ParseMode(c.Scheduler.Mode); err != nil {
		return err
	}
	if !c.Scheduler.Unpaced && c.Scheduler.Speed <= 0 {
		return fmt.Errorf("scheduler speed must be positive, got %g", c.Scheduler.Speed)
	}

	switch c.Sampling {
	case "", SamplingPolled, SamplingTriggered:
	default:
		return fmt.Errorf("invalid sampling: %s (valid: polled, triggered)", c.Sampling)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error, or empty for default)", c.Logging.Level)
	}
	return nil
}

func (c *Config) coreCircuit() core.CircuitConfig {
	return core.CircuitConfig{
		R1:       c.Circuit.R1,
		R2:       c.Circuit.R2,
		RL:       c.Circuit.RL,
		Vs:       c.Circuit.Vs,
		Rate:     c.Circuit.Rate,
		TickSize: c.Circuit.Tick,
		Horizon:  c.Circuit.Horizon,
	}
}

func (c *Config) schedulerMode() realtime.Mode {
	mode, _ := realtime.ParseMode(c.Scheduler.Mode)
	return mode
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CIRCUITX_MODE"); v != "" {
		config.Scheduler.Mode = v
	}

	if v := os.Getenv("CIRCUITX_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CIRCUITX_SPEED: %w", err)
		}
		config.Scheduler.Speed = f
	}

	if v := os.Getenv("CIRCUITX_UNPACED"); v != "" {
		config.Scheduler.Unpaced = v == "true" || v == "1"
	}

	if v := os.Getenv("CIRCUITX_SAMPLING"); v != "" {
		config.Sampling = strings.ToLower(v)
	}

	if v := os.Getenv("CIRCUITX_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

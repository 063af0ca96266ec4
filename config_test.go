package circuitx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/circuitx/internal/primitives"
	"github.com/comalice/circuitx/realtime"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100000.0, cfg.Circuit.R2)
	assert.Equal(t, 30000.0, cfg.Circuit.RL)
	assert.Equal(t, 10.0, cfg.Circuit.Vs)
	assert.Equal(t, 10.0, cfg.Circuit.Rate)
	assert.Equal(t, 100*time.Millisecond, cfg.Circuit.Tick)
	assert.Equal(t, 10*time.Second, cfg.Circuit.Horizon)
	assert.Equal(t, 300*time.Millisecond, cfg.Instruments.Ammeter.Interval)
	assert.Equal(t, 2*time.Second, cfg.Instruments.RollingOhmmeter.Interval)
	assert.True(t, cfg.Instruments.RollingOhmmeter.Debug)
	assert.Equal(t, 10, cfg.Instruments.Rolling.VoltageWindow)
	assert.Equal(t, 6, cfg.Instruments.Rolling.CurrentWindow)
	assert.Equal(t, realtime.ModeCooperative, cfg.schedulerMode())
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
circuit:
  r2: 50000
  horizon: 5s
instruments:
  ammeter:
    interval: 250ms
    debug: true
scheduler:
  mode: parallel
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50000.0, cfg.Circuit.R2)
	assert.Equal(t, 5*time.Second, cfg.Circuit.Horizon)
	assert.Equal(t, 30000.0, cfg.Circuit.RL, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Instruments.Ammeter.Interval)
	assert.True(t, cfg.Instruments.Ammeter.Debug)
	assert.Equal(t, 100*time.Millisecond, cfg.Instruments.Voltmeter.Interval)
	assert.Equal(t, realtime.ModeParallel, cfg.schedulerMode())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("circuit: [1, 2"))
	assert.Error(t, err)

	_, err = Parse([]byte("circuit:\n  tick: soon\n"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "tick: 100ms")

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDigest(t *testing.T) {
	a, b := Default(), Default()
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 16)

	b.Circuit.Rate = 20
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circuitx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sampling: triggered\nlogging:\n  level: debug\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, SamplingTriggered, cfg.Sampling)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CIRCUITX_MODE", "parallel")
	t.Setenv("CIRCUITX_SPEED", "4")
	t.Setenv("CIRCUITX_UNPACED", "1")
	t.Setenv("CIRCUITX_SAMPLING", "Triggered")
	t.Setenv("CIRCUITX_LOG_LEVEL", "trace")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "parallel", cfg.Scheduler.Mode)
	assert.Equal(t, 4.0, cfg.Scheduler.Speed)
	assert.True(t, cfg.Scheduler.Unpaced)
	assert.Equal(t, SamplingTriggered, cfg.Sampling)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoad_BadSpeed(t *testing.T) {
	t.Setenv("CIRCUITX_SPEED", "fast")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tick below 1ms", func(c *Config) { c.Circuit.Tick = 0 }},
		{"negative horizon", func(c *Config) { c.Circuit.Horizon = -time.Second }},
		{"negative load", func(c *Config) { c.Circuit.RL = -1 }},
		{"negative R1", func(c *Config) { c.Circuit.R1 = -5 }},
		{"zero interval", func(c *Config) { c.Instruments.Ohmmeter.Interval = 0 }},
		{"zero window", func(c *Config) { c.Instruments.Rolling.CurrentWindow = 0 }},
		{"unknown mode", func(c *Config) { c.Scheduler.Mode = "threads" }},
		{"zero speed", func(c *Config) { c.Scheduler.Speed = 0 }},
		{"unknown sampling", func(c *Config) { c.Sampling = "sometimes" }},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_HorizonPrecondition(t *testing.T) {
	cfg := Default()
	cfg.Circuit.R2 = 50000

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, primitives.ErrInvariant)
	assert.Contains(t, err.Error(), "R2")

	cfg.Circuit.Horizon = 5 * time.Second
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ZeroSpeedUnpaced(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Speed = 0
	cfg.Scheduler.Unpaced = true
	assert.NoError(t, cfg.Validate())
}

// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/builder"
	"github.com/comalice/circuitx/realtime"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// GenConfig creates an unpaced reference configuration that runs for horizon
// with the circuit ticking every tick. R2 starts high enough to stay
// non-negative until the horizon.
func GenConfig(horizon, tick time.Duration, mode realtime.Mode, sampling string) *circuitx.Config {
	r2 := max(circuitx.Default().Circuit.Rate*float64(horizon.Milliseconds()), 100000)
	cfg := builder.New(
		builder.Divider(0, r2),
		builder.Tick(tick),
		builder.Horizon(horizon),
		builder.Voltmeter(tick),
		builder.Mode(mode),
		builder.Unpaced(),
		builder.LogLevel("error"),
	)
	cfg.Sampling = sampling
	return cfg
}

// RunOnce builds and runs a simulation, panicking on failure.
func RunOnce(cfg *circuitx.Config) *circuitx.Simulation {
	sim, err := circuitx.New(cfg, circuitx.WithClock(realtime.NewVirtualClock(epoch)))
	if err != nil {
		panic(err)
	}
	if err := sim.Run(context.Background()); err != nil {
		panic(err)
	}
	return sim
}

// GenConfigYAML renders cfg as YAML.
func GenConfigYAML(cfg *circuitx.Config) []byte {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return data
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/comalice/circuitx"
	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/logging"
	"github.com/comalice/circuitx/internal/production"
)

func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "Scheduler mode: cooperative or parallel (one goroutine per task, ordered by priority)")
	cmd.Flags().Float64("speed", 0, "Simulated seconds per wall-clock second")
	cmd.Flags().Bool("unpaced", false, "Run as fast as possible")
	cmd.Flags().String("sampling", "", "Meter sampling: polled or triggered")
}

// applyRunFlags copies explicitly set simulation flags over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *circuitx.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Scheduler.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("speed") {
		cfg.Scheduler.Speed, _ = flags.GetFloat64("speed")
	}
	if flags.Changed("unpaced") {
		cfg.Scheduler.Unpaced, _ = flags.GetBool("unpaced")
	}
	if flags.Changed("sampling") {
		cfg.Sampling, _ = flags.GetString("sampling")
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation to its horizon",
		Long: `Run the simulation, printing every ohmmeter report as it is made.

Examples:
  circuitsim run                                 # Real time, 10 simulated seconds
  circuitsim run --speed 10                      # Ten times faster
  circuitsim run --unpaced --chart run.html      # As fast as possible, then chart
  circuitsim run --export run.json               # Save readings for display
  circuitsim run --metrics-addr :9090            # Serve Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

			reg := prometheus.NewRegistry()
			metrics := production.NewMetrics(reg)
			reports := make(chan core.Report, 64)
			pub := production.NewChannelPublisher(reports)

			sim, err := circuitx.New(cfg,
				circuitx.WithLogger(logger),
				circuitx.WithRecorder(metrics),
				circuitx.WithPublisher(pub))
			if err != nil {
				return err
			}

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				srv := serveMetrics(addr, reg, logger)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			done := make(chan struct{})
			go func() {
				defer close(done)
				printReports(cmd.OutOrStdout(), reports)
			}()

			runErr := sim.Run(ctx)
			_ = pub.Close()
			<-done

			if runErr != nil && ctx.Err() != nil && errors.Is(runErr, context.Canceled) {
				logger.Info("interrupted")
				runErr = nil
			}

			if path, _ := cmd.Flags().GetString("chart"); path != "" {
				if err := writeFile(path, func(w io.Writer) error {
					return production.RenderCharts(w, sim.Series()...)
				}); err != nil {
					return err
				}
			}
			if path, _ := cmd.Flags().GetString("export"); path != "" {
				format, _ := cmd.Flags().GetString("format")
				if format == "" {
					format = strings.TrimPrefix(filepath.Ext(path), ".")
				}
				if err := writeFile(path, func(w io.Writer) error {
					return production.Encode(w, format, sim.Report())
				}); err != nil {
					return err
				}
			}

			printSummary(cmd.OutOrStdout(), sim, pub.Dropped())
			return runErr
		},
	}
	addSimulationFlags(cmd)
	cmd.Flags().String("chart", "", "Write an HTML chart of every instrument to this file")
	cmd.Flags().String("export", "", "Write the run report to this file")
	cmd.Flags().String("format", "", "Export format: json or yaml (default: from the file extension)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr, "path", "/metrics")
	return srv
}

func printReports(w io.Writer, reports <-chan core.Report) {
	for r := range reports {
		fmt.Fprintf(w, "time: %6d %s %-16s %10.3f %s\n",
			r.Reading.TimeStep, r.Reading.Stamp(), r.Instrument, r.Reading.Value, r.Unit)
	}
}

func printSummary(w io.Writer, sim *circuitx.Simulation, dropped uint64) {
	final := sim.Circuit().Snapshot()
	fmt.Fprintf(w, "\nfinished at t=%s: R1=%.0f R2=%.0f V_L=%.3f V\n",
		final.TimeStep, final.R1, final.R2, final.LoadVoltage)
	for _, in := range sim.Report().Instruments {
		fmt.Fprintf(w, "  %-16s %4d readings (%s every %v)\n", in.Name, len(in.Readings), in.Unit, in.Interval)
	}
	if dropped > 0 {
		fmt.Fprintf(w, "  %d reports not displayed (backpressure)\n", dropped)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

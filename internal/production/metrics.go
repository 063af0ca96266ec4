package production

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/primitives"
)

const metricsNamespace = "circuitx"

// Metrics is a core.Recorder that exports circuit state and instrument
// readings as Prometheus metrics.
type Metrics struct {
	// TicksTotal counts circuit ticks.
	TicksTotal prometheus.Counter

	// Resistance is the current value of each resistor.
	// Labels: resistor (r1, r2, rl, r_parallel)
	Resistance *prometheus.GaugeVec

	// LoadVoltage is the current V_L.
	LoadVoltage prometheus.Gauge

	// SimulatedSeconds is the simulated time of the last tick.
	SimulatedSeconds prometheus.Gauge

	// ReadingsTotal counts readings and reports.
	// Labels: instrument
	ReadingsTotal *prometheus.CounterVec

	// ReadingValue is the latest value of each instrument.
	// Labels: instrument
	ReadingValue *prometheus.GaugeVec

	// ReportsSkipped counts report ticks that produced nothing.
	// Labels: instrument, reason (division_by_zero, empty_history)
	ReportsSkipped *prometheus.CounterVec

	// ReadingLag is the wall-clock age of a reading when it was recorded.
	ReadingLag prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ticks_total",
			Help:      "Total circuit ticks",
		}),
		Resistance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resistance_ohms",
			Help:      "Resistance of each circuit element in ohms",
		}, []string{"resistor"}),
		LoadVoltage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "load_voltage_volts",
			Help:      "Voltage across the load in volts",
		}),
		SimulatedSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "simulated_time_seconds",
			Help:      "Simulated time of the last circuit tick",
		}),
		ReadingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "readings_total",
			Help:      "Total readings by instrument",
		}, []string{"instrument"}),
		ReadingValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "reading_value",
			Help:      "Latest reading by instrument, in the instrument's unit",
		}, []string{"instrument"}),
		ReportsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_skipped_total",
			Help:      "Report ticks skipped by derived instruments",
		}, []string{"instrument", "reason"}),
		ReadingLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reading_lag_seconds",
			Help:      "Wall-clock delay between taking and recording a reading",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

// RecordTick implements core.Recorder.
func (m *Metrics) RecordTick(s core.State) {
	m.TicksTotal.Inc()
	m.SimulatedSeconds.Set(s.TimeStep.Seconds())
	m.Resistance.WithLabelValues("r1").Set(s.R1)
	m.Resistance.WithLabelValues("r2").Set(s.R2)
	m.Resistance.WithLabelValues("rl").Set(s.RL)
	m.Resistance.WithLabelValues("r_parallel").Set(s.RParallel)
	m.LoadVoltage.Set(s.LoadVoltage)
}

// RecordReading implements core.Recorder.
func (m *Metrics) RecordReading(instrument string, r primitives.Reading) {
	m.ReadingsTotal.WithLabelValues(instrument).Inc()
	m.ReadingValue.WithLabelValues(instrument).Set(r.Value)
	if lag := time.Since(r.Timestamp).Seconds(); lag >= 0 && !math.IsInf(lag, 0) {
		m.ReadingLag.Observe(lag)
	}
}

// RecordSkip implements core.Recorder.
func (m *Metrics) RecordSkip(instrument, reason string) {
	m.ReportsSkipped.WithLabelValues(instrument, reason).Inc()
}

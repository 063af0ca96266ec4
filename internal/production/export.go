package production

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/circuitx/internal/core"
	"github.com/comalice/circuitx/internal/primitives"
)

// InstrumentRun is the reading history of one instrument.
type InstrumentRun struct {
	Name     string               `json:"name" yaml:"name"`
	Unit     string               `json:"unit" yaml:"unit"`
	Interval time.Duration        `json:"interval" yaml:"interval"`
	Ready    *bool                `json:"ready,omitempty" yaml:"ready,omitempty"`
	Readings []primitives.Reading `json:"readings" yaml:"readings"`
}

// RunReport summarises a finished or interrupted run.
type RunReport struct {
	Mode        string          `json:"mode" yaml:"mode"`
	Config      string          `json:"config" yaml:"config"` // digest of the run configuration
	Horizon     time.Duration   `json:"horizon" yaml:"horizon"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at" yaml:"finished_at"`
	Final       core.State      `json:"final" yaml:"final"`
	Instruments []InstrumentRun `json:"instruments" yaml:"instruments"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Instrument returns the run of the named instrument.
func (r RunReport) Instrument(name string) (InstrumentRun, bool) {
	for _, in := range r.Instruments {
		if in.Name == name {
			return in, true
		}
	}
	return InstrumentRun{}, false
}

// EncodeJSON writes report as indented JSON.
func EncodeJSON(w io.Writer, report RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// EncodeYAML writes report as YAML.
func EncodeYAML(w io.Writer, report RunReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return nil
}

// Encode writes report in the named format ("json" or "yaml").
func Encode(w io.Writer, format string, report RunReport) error {
	switch format {
	case "json":
		return EncodeJSON(w, report)
	case "yaml", "yml":
		return EncodeYAML(w, report)
	default:
		return fmt.Errorf("unknown export format %q (valid: json, yaml)", format)
	}
}

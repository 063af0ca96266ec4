package primitives

import (
	"encoding/json"
	"math"
	"sync"
	"time"
)

// StampLayout is the wall-clock layout used when a Reading is displayed.
const StampLayout = "2006-01-02 15:04:05.000"

// Reading is one instrument record. Readings are values and must not be
// mutated once appended to a History.
type Reading struct {
	TimeStep  TimeStep  `json:"time_step" yaml:"time_step"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Value     float64   `json:"value" yaml:"value"`
}

// NewReading creates a Reading taken at simulated time t and wall-clock time now.
func NewReading(t TimeStep, now time.Time, value float64) Reading {
	return Reading{
		TimeStep:  t,
		Timestamp: now,
		Value:     value,
	}
}

// MarshalJSON encodes a non-finite value (a short-circuited load reads +Inf)
// as a null value.
func (r Reading) MarshalJSON() ([]byte, error) {
	type plain Reading
	out := struct {
		plain
		Value *float64 `json:"value"`
	}{plain: plain(r)}
	if !math.IsInf(r.Value, 0) && !math.IsNaN(r.Value) {
		out.Value = &r.Value
	}
	return json.Marshal(out)
}

// Stamp formats the wall-clock timestamp with millisecond precision.
func (r Reading) Stamp() string {
	return r.Timestamp.Format(StampLayout)
}

// History is an append-only, ordered sequence of Readings.
type History struct {
	mu       sync.RWMutex
	readings []Reading
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds r at the end of the history.
func (h *History) Append(r Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, r)
}

// Last returns the most recent reading, or ErrEmptyHistory.
func (h *History) Last() (Reading, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.readings) == 0 {
		return Reading{}, ErrEmptyHistory
	}
	return h.readings[len(h.readings)-1], nil
}

// All returns a copy of every reading in insertion order.
func (h *History) All() []Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Reading, len(h.readings))
	copy(out, h.readings)
	return out
}

// Len returns the number of readings.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.readings)
}

// Clear drops every reading.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = nil
}

// Pair is one (voltage, current) observation.
type Pair struct {
	Voltage float64 `json:"voltage" yaml:"voltage"`
	Current float64 `json:"current" yaml:"current"`
}

// PairHistory stores every observed pair and serves windowed reads over the
// trailing samples of each stream independently.
type PairHistory struct {
	mu    sync.RWMutex
	pairs []Pair
}

// NewPairHistory creates an empty PairHistory.
func NewPairHistory() *PairHistory {
	return &PairHistory{}
}

// Append records one pair.
func (h *PairHistory) Append(v, i float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pairs = append(h.pairs, Pair{Voltage: v, Current: i})
}

// Len returns the number of stored pairs.
func (h *PairHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pairs)
}

// TailVoltage returns the voltages of the trailing k pairs, or all of them when
// fewer than k exist.
func (h *PairHistory) TailVoltage(k int) []float64 {
	return h.tail(k, func(p Pair) float64 { return p.Voltage })
}

// TailCurrent returns the currents of the trailing k pairs, or all of them when
// fewer than k exist.
func (h *PairHistory) TailCurrent(k int) []float64 {
	return h.tail(k, func(p Pair) float64 { return p.Current })
}

// Pairs returns a copy of every stored pair.
func (h *PairHistory) Pairs() []Pair {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Pair, len(h.pairs))
	copy(out, h.pairs)
	return out
}

// Clear drops every pair.
func (h *PairHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pairs = nil
}

func (h *PairHistory) tail(k int, field func(Pair) float64) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 {
		return nil
	}
	start := len(h.pairs) - k
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, len(h.pairs)-start)
	for _, p := range h.pairs[start:] {
		out = append(out, field(p))
	}
	return out
}

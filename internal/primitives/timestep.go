package primitives

import (
	"strconv"
	"time"
)

// TimeStep is a point in simulated time, in milliseconds since the start of a run.
type TimeStep int64

// FromDuration converts a duration to a TimeStep, truncating below one millisecond.
func FromDuration(d time.Duration) TimeStep {
	return TimeStep(d / time.Millisecond)
}

// Duration returns t as a time.Duration.
func (t TimeStep) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// Seconds returns t in seconds.
func (t TimeStep) Seconds() float64 {
	return float64(t) / 1000
}

func (t TimeStep) String() string {
	return strconv.FormatInt(int64(t), 10) + "ms"
}

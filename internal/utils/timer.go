package utils

import "time"

// Timer measures elapsed wall-clock time from its creation, for latency
// fields in log records.
type Timer struct {
	start time.Time
}

// NewTimer returns a started Timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer was created.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

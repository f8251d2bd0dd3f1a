// Package meter tracks a rolling window of event timestamps.
package meter

import "time"

const (
	// DefaultRetention bounds how long recorded events are kept.
	DefaultRetention = 10 * time.Second
	// DefaultWindow is the window used for per-second rates.
	DefaultWindow = time.Second
)

// Meter counts recent events. It is not safe for concurrent use.
type Meter struct {
	retention time.Duration
	events    []time.Time
}

// New returns a Meter that keeps events for the given retention.
// A non-positive retention falls back to DefaultRetention.
func New(retention time.Duration) *Meter {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Meter{retention: retention}
}

// Record appends an event and drops events older than the retention.
func (m *Meter) Record(at time.Time) {
	m.events = append(m.events, at)
	m.prune(at)
}

// Rate returns the number of events with now-t < window.
func (m *Meter) Rate(now time.Time, window time.Duration) int {
	count := 0
	for _, t := range m.events {
		if now.Sub(t) < window {
			count++
		}
	}
	return count
}

// Len returns the number of retained events.
func (m *Meter) Len() int {
	return len(m.events)
}

// Reset drops all retained events.
func (m *Meter) Reset() {
	m.events = nil
}

func (m *Meter) prune(now time.Time) {
	cutoff := now.Add(-m.retention)
	keep := 0
	for keep < len(m.events) && !m.events[keep].After(cutoff) {
		keep++
	}
	if keep == 0 {
		return
	}
	m.events = append(m.events[:0], m.events[keep:]...)
}

package stage

import "time"

// DefaultDefinitions returns the π stages, one more digit per tier.
func DefaultDefinitions() []Definition {
	digits := []struct {
		id        string
		threshold int
		interval  time.Duration
	}{
		{"3", 10, 5000 * time.Millisecond},
		{"3.1", 20, 4000 * time.Millisecond},
		{"3.14", 35, 3000 * time.Millisecond},
		{"3.141", 50, 2500 * time.Millisecond},
		{"3.1415", 70, 2000 * time.Millisecond},
		{"3.14159", 95, 1500 * time.Millisecond},
		{"3.141592", 125, 1200 * time.Millisecond},
		{"3.1415926", 160, 1000 * time.Millisecond},
	}
	defs := make([]Definition, 0, len(digits))
	for _, d := range digits {
		defs = append(defs, Definition{
			ID:              d.id,
			EnergyThreshold: d.threshold,
			TickInterval:    d.interval,
			Label:           "Building π = " + d.id + "...",
		})
	}
	return defs
}

// Default returns the validated π stage table.
func Default() *Table {
	t, err := New(DefaultDefinitions())
	if err != nil {
		panic("stage: default table is invalid: " + err.Error())
	}
	return t
}

// Package stage defines the ordered difficulty table.
package stage

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyTable is returned when no stages are defined.
	ErrEmptyTable = errors.New("stage table is empty")
	// ErrThresholdOrder is returned when energy thresholds do not strictly increase.
	ErrThresholdOrder = errors.New("stage energy thresholds must strictly increase")
	// ErrIntervalOrder is returned when tick intervals increase between stages.
	ErrIntervalOrder = errors.New("stage tick intervals must not increase")
)

// Definition describes one difficulty tier.
type Definition struct {
	ID              string
	EnergyThreshold int
	TickInterval    time.Duration
	Label           string
}

// Table is an immutable, validated sequence of stages.
type Table struct {
	defs []Definition
}

// New validates defs and returns a Table holding a private copy.
func New(defs []Definition) (*Table, error) {
	if len(defs) == 0 {
		return nil, ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("stage %d: id must not be empty", i)
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("stage %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.TickInterval <= 0 {
			return nil, fmt.Errorf("stage %q: tick interval must be > 0", d.ID)
		}
		if i == 0 {
			continue
		}
		prev := defs[i-1]
		if d.EnergyThreshold <= prev.EnergyThreshold {
			return nil, fmt.Errorf("stage %q: %w", d.ID, ErrThresholdOrder)
		}
		if d.TickInterval > prev.TickInterval {
			return nil, fmt.Errorf("stage %q: %w", d.ID, ErrIntervalOrder)
		}
	}
	out := make([]Definition, len(defs))
	copy(out, defs)
	return &Table{defs: out}, nil
}

// Len returns the number of stages.
func (t *Table) Len() int {
	return len(t.defs)
}

// Lookup returns the stage at index. An out-of-range index is a programming error.
func (t *Table) Lookup(index int) Definition {
	if index < 0 || index >= len(t.defs) {
		panic(fmt.Sprintf("stage: index %d out of range [0,%d)", index, len(t.defs)))
	}
	return t.defs[index]
}

// Next returns the stage following index, if any.
func (t *Table) Next(index int) (Definition, bool) {
	next := index + 1
	if next <= 0 || next >= len(t.defs) {
		return Definition{}, false
	}
	return t.defs[next], true
}

// Definitions returns a copy of all stages in order.
func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	copy(out, t.defs)
	return out
}

// Package model defines shared data structures.
package model

import "time"

// ExpiryPolicy selects what happens when the stage timer runs out.
type ExpiryPolicy string

const (
	// ExpiryReset drops energy and stage back to the start and keeps playing.
	ExpiryReset ExpiryPolicy = "reset"
	// ExpiryEnd ends the session.
	ExpiryEnd ExpiryPolicy = "end"
)

// GameConfig defines session tuning.
type GameConfig struct {
	CorrectClickGain int
	WrongClickGain   int
	DecayInterval    time.Duration
	DecayAmount      int
	WrongClickLimit  int
	TimerTick        time.Duration
	CountdownSteps   int
	Candidates       int
	Expiry           ExpiryPolicy
	RestartRunning   bool
	Seed             int64
}

// DefaultGameConfig returns the stock tuning.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		CorrectClickGain: 1,
		WrongClickGain:   0,
		DecayInterval:    time.Second,
		DecayAmount:      1,
		WrongClickLimit:  3,
		TimerTick:        100 * time.Millisecond,
		CountdownSteps:   3,
		Candidates:       5,
		Expiry:           ExpiryReset,
	}
}

// ClaimConfig defines how claims reach the collaborator.
type ClaimConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
}

// Candidate is one selectable segment.
type Candidate struct {
	ID        int
	Attribute string
	IsTarget  bool
}

// ClaimRecord is a stored claim submission.
type ClaimRecord struct {
	ID           string
	Timestamp    time.Time
	EnergyPoints int
	StageID      string
	Outcome      string
	Attempts     int
	Error        string
}

// SessionRecord captures a finished game session.
type SessionRecord struct {
	StartedAt       time.Time
	EndedAt         time.Time
	FinalScore      int
	StageID         string
	StageIndex      int
	TotalSelections int
	Resets          int
	EndReason       string
	DurationMs      int64
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	SessionID       int64
	EndedAt         time.Time
	FinalScore      int
	StageIndex      int
	StageID         string
	TotalSelections int
	EndReason       string
	DurationMs      int64
}

// StatsConfig defines filters for stats output.
type StatsConfig struct {
	Since       *time.Time
	Last        int
	CurveWindow int
}

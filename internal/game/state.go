package game

import "time"

// Phase is the scheduler state of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhaseRunning
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhaseRunning:
		return "running"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Reasons a session ended.
const (
	EndWrongClicks = "wrong-clicks"
	EndTimeExpired = "time-expired"
)

// State is the mutable record of one session.
type State struct {
	Phase      Phase
	Generation uint64

	Energy        int
	StageIndex    int
	ActiveTarget  string
	WrongStreak   int
	TimeRemaining time.Duration
	Countdown     int

	Active     bool
	Ended      bool
	FinalScore int
	EndReason  string
	Resets     int

	TotalSelections   int
	Throughput        int
	LastSelectionTime time.Time
	SessionStartTime  time.Time
	EndedAt           time.Time
}

// Package game implements the reactor session engine.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/pireactor/internal/generator"
	"github.com/verte-zerg/pireactor/internal/meter"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/stage"
)

// CountdownStep is the length of one pre-start countdown step.
const CountdownStep = time.Second

// ErrPaletteTooSmall is returned when the palette cannot fill a candidate set.
var ErrPaletteTooSmall = errors.New("palette has fewer distinct values than candidates")

// ClaimRequest asks the claim collaborator to record a correct selection.
type ClaimRequest struct {
	Generation   uint64
	EnergyPoints int
	StageID      string
	At           time.Time
}

// ClaimDispatcher hands claims off without blocking the engine.
type ClaimDispatcher interface {
	DispatchClaim(req ClaimRequest)
}

// DispatchFunc adapts a function to ClaimDispatcher.
type DispatchFunc func(req ClaimRequest)

// DispatchClaim implements ClaimDispatcher.
func (f DispatchFunc) DispatchClaim(req ClaimRequest) {
	f(req)
}

// Snapshot is a read-only copy of everything the presentation layer draws.
type Snapshot struct {
	State       State
	Candidates  []model.Candidate
	Stage       stage.Definition
	NextStage   stage.Definition
	HasNext     bool
	StageCount  int
	LastOutcome *ClickOutcome
}

// Engine owns one session at a time. It is not safe for concurrent use: a
// single goroutine must issue every command and Advance call.
type Engine struct {
	cfg     model.GameConfig
	stages  *stage.Table
	palette []string
	gen     *generator.Generator
	meter   *meter.Meter
	sched   *Scheduler
	claims  ClaimDispatcher

	state       State
	candidates  []model.Candidate
	lastOutcome *ClickOutcome
}

// Validate checks cfg against a palette of paletteSize distinct values.
func Validate(cfg model.GameConfig, paletteSize int) error {
	switch {
	case cfg.CorrectClickGain < 0:
		return fmt.Errorf("correct click gain must be >= 0")
	case cfg.DecayInterval <= 0:
		return fmt.Errorf("decay interval must be > 0")
	case cfg.DecayAmount < 0:
		return fmt.Errorf("decay amount must be >= 0")
	case cfg.WrongClickLimit < 1:
		return fmt.Errorf("wrong click limit must be >= 1")
	case cfg.TimerTick <= 0:
		return fmt.Errorf("timer tick must be > 0")
	case cfg.CountdownSteps < 0:
		return fmt.Errorf("countdown steps must be >= 0")
	case cfg.Candidates < 1:
		return fmt.Errorf("candidates must be >= 1")
	}
	switch cfg.Expiry {
	case "", model.ExpiryReset, model.ExpiryEnd:
	default:
		return fmt.Errorf("unknown expiry policy %q", cfg.Expiry)
	}
	if paletteSize < cfg.Candidates {
		return fmt.Errorf("%w: %d < %d", ErrPaletteTooSmall, paletteSize, cfg.Candidates)
	}
	return nil
}

// New builds an engine in the idle phase. claims may be nil.
func New(cfg model.GameConfig, stages *stage.Table, palette []string, claims ClaimDispatcher, now time.Time) (*Engine, error) {
	if stages == nil {
		return nil, stage.ErrEmptyTable
	}
	seen := make(map[string]struct{}, len(palette))
	for _, v := range palette {
		if _, ok := seen[v]; ok {
			return nil, fmt.Errorf("palette value %q is duplicated", v)
		}
		seen[v] = struct{}{}
	}
	if err := Validate(cfg, len(palette)); err != nil {
		return nil, err
	}
	if cfg.Expiry == "" {
		cfg.Expiry = model.ExpiryReset
	}
	e := &Engine{
		cfg:     cfg,
		stages:  stages,
		palette: append([]string(nil), palette...),
		gen:     generator.New(cfg.Seed),
		meter:   meter.New(meter.DefaultRetention),
		sched:   NewScheduler(),
		claims:  claims,
	}
	e.reset(now)
	return e, nil
}

// Config returns the engine tuning.
func (e *Engine) Config() model.GameConfig {
	return e.cfg
}

// Generation identifies the current session; it changes on every restart.
func (e *Engine) Generation() uint64 {
	return e.state.Generation
}

// Ticking reports whether any periodic task is armed.
func (e *Engine) Ticking() bool {
	return e.sched.Active() > 0
}

// NextDeadline returns when the earliest armed timer is due.
func (e *Engine) NextDeadline() (time.Time, bool) {
	return e.sched.NextDeadline()
}

// Start leaves the idle phase, entering the countdown. It returns false when
// the session is not idle.
func (e *Engine) Start(now time.Time) bool {
	if e.state.Phase != PhaseIdle {
		return false
	}
	if e.cfg.CountdownSteps <= 0 {
		e.run(now)
		return true
	}
	e.state.Phase = PhaseCountdown
	e.state.Countdown = e.cfg.CountdownSteps
	e.sched.Arm(TimerCountdown, CountdownStep, now)
	return true
}

// Restart discards the session and begins a fresh one, idle or running
// depending on configuration.
func (e *Engine) Restart(now time.Time) {
	e.sched.CancelAll()
	e.meter.Reset()
	e.lastOutcome = nil
	e.state.Generation++
	e.reset(now)
	if e.cfg.RestartRunning {
		e.run(now)
	}
}

// Advance fires every timer due at or before now, one at a time, each at its
// own scheduled instant.
func (e *Engine) Advance(now time.Time) {
	for {
		name, at, ok := e.sched.Due(now)
		if !ok {
			return
		}
		e.fire(name, at)
	}
}

// Snapshot copies the current state for rendering.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		State:      e.state,
		Candidates: append([]model.Candidate(nil), e.candidates...),
		Stage:      e.stages.Lookup(e.state.StageIndex),
		StageCount: e.stages.Len(),
	}
	snap.NextStage, snap.HasNext = e.stages.Next(e.state.StageIndex)
	if e.lastOutcome != nil {
		out := *e.lastOutcome
		snap.LastOutcome = &out
	}
	return snap
}

func (e *Engine) reset(now time.Time) {
	first := e.stages.Lookup(0)
	e.state = State{
		Phase:             PhaseIdle,
		Generation:        e.state.Generation,
		TimeRemaining:     first.TickInterval,
		LastSelectionTime: now,
	}
	e.rotate()
}

func (e *Engine) run(at time.Time) {
	st := &e.state
	st.Phase = PhaseRunning
	st.Active = true
	st.Countdown = 0
	st.SessionStartTime = at
	st.LastSelectionTime = at
	current := e.currentStage()
	st.TimeRemaining = current.TickInterval

	e.sched.Cancel(TimerCountdown)
	e.sched.Arm(TimerRotation, current.TickInterval, at)
	e.sched.Arm(TimerDecay, e.cfg.DecayInterval, at)
	e.sched.Arm(TimerStage, e.cfg.TimerTick, at)
}

func (e *Engine) fire(name TimerName, at time.Time) {
	switch name {
	case TimerCountdown:
		e.countdownStep(at)
	case TimerStage:
		e.stageTick(at)
	case TimerDecay:
		e.decay(at)
	case TimerRotation:
		e.rotate()
	}
}

func (e *Engine) countdownStep(at time.Time) {
	if e.state.Phase != PhaseCountdown {
		e.sched.Cancel(TimerCountdown)
		return
	}
	e.state.Countdown--
	if e.state.Countdown <= 0 {
		e.run(at)
	}
}

func (e *Engine) rotate() {
	target := e.gen.Target(e.palette)
	e.state.ActiveTarget = target
	e.candidates = e.gen.Candidates(e.palette, e.cfg.Candidates, target)
}

func (e *Engine) decay(at time.Time) {
	st := &e.state
	if at.Sub(st.LastSelectionTime) <= e.cfg.DecayInterval {
		return
	}
	if st.Energy == 0 {
		return
	}
	st.Energy -= e.cfg.DecayAmount
	if st.Energy < 0 {
		st.Energy = 0
	}
	e.checkProgression(at)
}

func (e *Engine) stageTick(at time.Time) {
	st := &e.state
	st.TimeRemaining -= e.cfg.TimerTick
	if st.TimeRemaining > 0 {
		return
	}
	if e.cfg.Expiry == model.ExpiryEnd {
		st.TimeRemaining = 0
		e.end(at, EndTimeExpired)
		return
	}
	prevStage := st.StageIndex
	st.Energy = 0
	st.StageIndex = 0
	st.WrongStreak = 0
	st.Resets++
	first := e.stages.Lookup(0)
	st.TimeRemaining = first.TickInterval
	if prevStage != 0 {
		e.sched.Arm(TimerRotation, first.TickInterval, at)
	}
}

// checkProgression advances through every stage whose threshold energy meets.
func (e *Engine) checkProgression(at time.Time) {
	st := &e.state
	advanced := false
	for {
		current := e.stages.Lookup(st.StageIndex)
		next, ok := e.stages.Next(st.StageIndex)
		if !ok || st.Energy < current.EnergyThreshold {
			break
		}
		st.StageIndex++
		st.TimeRemaining = next.TickInterval
		advanced = true
	}
	if advanced {
		e.sched.Arm(TimerRotation, e.currentStage().TickInterval, at)
	}
}

func (e *Engine) end(at time.Time, reason string) {
	st := &e.state
	st.Ended = true
	st.Active = false
	st.Phase = PhaseEnded
	st.FinalScore = st.Energy
	st.EndReason = reason
	st.EndedAt = at
	e.sched.CancelAll()
}

func (e *Engine) currentStage() stage.Definition {
	return e.stages.Lookup(e.state.StageIndex)
}

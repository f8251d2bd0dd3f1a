// Package tui provides the Bubble Tea reactor interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/game"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/stage"
)

// FlashDuration is how long click feedback stays on screen.
const FlashDuration = 200 * time.Millisecond

// History persists finished sessions and claim outcomes.
type History interface {
	InsertSession(ctx context.Context, rec model.SessionRecord) (int64, error)
	InsertClaim(ctx context.Context, rec model.ClaimRecord) error
}

// Options configures a Model.
type Options struct {
	Game      model.GameConfig
	Stages    *stage.Table
	Palette   []string
	Submitter *claim.Submitter
	History   History
	Now       func() time.Time
}

type tickMsg struct {
	loop uint64
	at   time.Time
}

type flashDoneMsg struct {
	seq int
}

type claimResultMsg struct {
	generation uint64
	result     claim.Result
}

// Model implements the Bubble Tea reactor UI.
type Model struct {
	engine    *game.Engine
	submitter *claim.Submitter
	history   History
	now       func() time.Time
	tick      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	keys   keyMap
	help   help.Model
	energy progress.Model

	pending []game.ClaimRequest
	loop    uint64
	ticking bool

	flash    *game.ClickOutcome
	flashSeq int
	recorded bool

	claimsOK     int
	claimsFailed int
	claimsStale  int
	lastClaim    string

	width  int
	height int
}

// NewModel builds the engine and the UI around it.
func NewModel(opts Options) (*Model, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		submitter: opts.Submitter,
		history:   opts.History,
		now:       opts.Now,
		tick:      opts.Game.TimerTick,
		ctx:       ctx,
		cancel:    cancel,
		keys:      newKeyMap(opts.Game.Candidates),
		help:      help.New(),
		energy:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(energyBarWidth)),
	}
	engine, err := game.New(opts.Game, opts.Stages, opts.Palette, game.DispatchFunc(m.queueClaim), opts.Now())
	if err != nil {
		cancel()
		return nil, err
	}
	m.engine = engine
	if m.tick <= 0 {
		m.tick = engine.Config().TimerTick
	}
	return m, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.syncTicker()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tickMsg:
		if msg.loop != m.loop {
			return m, nil
		}
		m.ticking = false
		m.engine.Advance(msg.at)
		return m, m.afterEngine()
	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = nil
		}
		return m, nil
	case claimResultMsg:
		m.handleClaimResult(msg)
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Restart):
		m.engine.Restart(m.now())
		m.recorded = false
		m.flash = nil
		return m, m.afterEngine()
	case key.Matches(msg, m.keys.Start):
		if m.engine.Snapshot().State.Ended {
			m.engine.Restart(m.now())
			m.recorded = false
		}
		m.engine.Start(m.now())
		return m, m.afterEngine()
	case key.Matches(msg, m.keys.Select):
		idx, ok := candidateIndex(msg.String())
		if !ok {
			return m, nil
		}
		// Judge the pick against the round on screen; timers due at the same
		// instant fire after it.
		now := m.now()
		out, ok := m.engine.SubmitSelection(idx, now)
		m.engine.Advance(now)
		if !ok {
			return m, m.afterEngine()
		}
		m.flashSeq++
		m.flash = &out
		seq := m.flashSeq
		flashOff := tea.Tick(FlashDuration, func(time.Time) tea.Msg {
			return flashDoneMsg{seq: seq}
		})
		return m, tea.Batch(m.afterEngine(), flashOff)
	}
	return m, nil
}

// afterEngine collects the side effects of an engine command: queued claims,
// the end-of-session record and the tick loop.
func (m *Model) afterEngine() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.pending)+1)
	for _, req := range m.pending {
		cmds = append(cmds, m.claimCmd(req))
	}
	m.pending = m.pending[:0]
	m.recordEnd()
	cmds = append(cmds, m.syncTicker())
	return tea.Batch(cmds...)
}

// syncTicker keeps exactly one tick loop alive while the engine has timers.
func (m *Model) syncTicker() tea.Cmd {
	if !m.engine.Ticking() {
		m.loop++
		m.ticking = false
		return nil
	}
	if m.ticking {
		return nil
	}
	m.loop++
	m.ticking = true
	loop := m.loop
	now := m.now
	return tea.Tick(m.nextTickDelay(), func(time.Time) tea.Msg {
		return tickMsg{loop: loop, at: now()}
	})
}

// nextTickDelay wakes the loop at the engine's next deadline, and at least
// once per timer tick.
func (m *Model) nextTickDelay() time.Duration {
	deadline, ok := m.engine.NextDeadline()
	if !ok {
		return m.tick
	}
	return min(max(deadline.Sub(m.now()), 0), m.tick)
}

func (m *Model) queueClaim(req game.ClaimRequest) {
	m.pending = append(m.pending, req)
}

func (m *Model) claimCmd(req game.ClaimRequest) tea.Cmd {
	if m.submitter == nil {
		return nil
	}
	ctx := m.ctx
	sub := m.submitter
	return func() tea.Msg {
		return claimResultMsg{
			generation: req.Generation,
			result:     sub.Submit(ctx, req.EnergyPoints, req.StageID),
		}
	}
}

func (m *Model) handleClaimResult(msg claimResultMsg) {
	res := msg.result
	if msg.generation != m.engine.Generation() {
		m.claimsStale++
		log.Printf("dropping claim %s from session %d: session %d is current", res.Request.ID, msg.generation, m.engine.Generation())
		return
	}
	if res.Success {
		m.claimsOK++
		m.lastClaim = res.ClaimID
		log.Printf("claim %s accepted after %d attempt(s)", res.ClaimID, res.Attempts)
	} else {
		m.claimsFailed++
		if !errors.Is(res.Err, context.Canceled) {
			log.Printf("claim %s failed after %d attempt(s): %v", res.Request.ID, res.Attempts, res.Err)
		}
	}
	if m.history == nil {
		return
	}
	rec := model.ClaimRecord{
		ID:           res.Request.ID,
		Timestamp:    res.Request.Timestamp,
		EnergyPoints: res.Request.EnergyPoints,
		StageID:      res.Request.StageID,
		Outcome:      res.Outcome(),
		Attempts:     res.Attempts,
	}
	if res.Success && res.ClaimID != "" {
		rec.ID = res.ClaimID
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := m.history.InsertClaim(context.Background(), rec); err != nil {
		log.Printf("failed to save claim: %v", err)
	}
}

func (m *Model) recordEnd() {
	snap := m.engine.Snapshot()
	if !snap.State.Ended || m.recorded {
		return
	}
	m.recorded = true
	if m.history == nil {
		return
	}
	st := snap.State
	rec := model.SessionRecord{
		StartedAt:       st.SessionStartTime,
		EndedAt:         st.EndedAt,
		FinalScore:      st.FinalScore,
		StageID:         snap.Stage.ID,
		StageIndex:      st.StageIndex,
		TotalSelections: st.TotalSelections,
		Resets:          st.Resets,
		EndReason:       st.EndReason,
		DurationMs:      st.EndedAt.Sub(st.SessionStartTime).Milliseconds(),
	}
	if _, err := m.history.InsertSession(context.Background(), rec); err != nil {
		log.Printf("failed to save session: %v", err)
	}
}

// Close cancels in-flight claims.
func (m *Model) Close() {
	m.cancel()
}

func (m *Model) claimSummary() string {
	summary := fmt.Sprintf("Claims %d ok · %d failed", m.claimsOK, m.claimsFailed)
	if m.claimsStale > 0 {
		summary += fmt.Sprintf(" · %d dropped", m.claimsStale)
	}
	return summary
}

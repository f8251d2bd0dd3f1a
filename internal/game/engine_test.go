package game

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/palette"
	"github.com/verte-zerg/pireactor/internal/stage"
)

var epoch = time.Unix(1_700_000_000, 0)

type claimSink struct {
	reqs []ClaimRequest
}

func (c *claimSink) DispatchClaim(req ClaimRequest) {
	c.reqs = append(c.reqs, req)
}

func testConfig() model.GameConfig {
	cfg := model.DefaultGameConfig()
	cfg.CountdownSteps = 0
	cfg.Seed = 1
	return cfg
}

func newEngine(t *testing.T, cfg model.GameConfig, table *stage.Table) (*Engine, *claimSink) {
	t.Helper()
	if table == nil {
		table = stage.Default()
	}
	sink := &claimSink{}
	e, err := New(cfg, table, palette.Default(), sink, epoch)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e, sink
}

func targetID(t *testing.T, e *Engine) int {
	t.Helper()
	for _, c := range e.Snapshot().Candidates {
		if c.IsTarget {
			return c.ID
		}
	}
	t.Fatalf("no target candidate")
	return -1
}

func wrongID(t *testing.T, e *Engine) int {
	t.Helper()
	for _, c := range e.Snapshot().Candidates {
		if !c.IsTarget {
			return c.ID
		}
	}
	t.Fatalf("no wrong candidate")
	return -1
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Candidates = 11
	if _, err := New(cfg, stage.Default(), palette.Default(), nil, epoch); !errors.Is(err, ErrPaletteTooSmall) {
		t.Fatalf("expected palette error, got %v", err)
	}
	cfg = testConfig()
	cfg.WrongClickLimit = 0
	if _, err := New(cfg, stage.Default(), palette.Default(), nil, epoch); err == nil {
		t.Fatalf("expected wrong click limit error")
	}
	if _, err := New(testConfig(), stage.Default(), []string{"#000000", "#000000", "#1", "#2", "#3"}, nil, epoch); err == nil {
		t.Fatalf("expected duplicate palette error")
	}
	if _, err := New(testConfig(), nil, palette.Default(), nil, epoch); !errors.Is(err, stage.ErrEmptyTable) {
		t.Fatalf("expected empty table error, got %v", err)
	}
}

func TestIdleEngineHasTargetAndIgnoresClicks(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	snap := e.Snapshot()
	if snap.State.Phase != PhaseIdle || snap.State.Active || snap.State.Ended {
		t.Fatalf("expected idle state, got %+v", snap.State)
	}
	if len(snap.Candidates) != 5 || snap.State.ActiveTarget == "" {
		t.Fatalf("expected initial candidates and target")
	}
	if _, ok := e.SubmitSelection(targetID(t, e), epoch); ok {
		t.Fatalf("expected click to be ignored while idle")
	}
	if e.Ticking() {
		t.Fatalf("idle engine should not arm timers")
	}
}

func TestCountdownThenRunning(t *testing.T) {
	cfg := testConfig()
	cfg.CountdownSteps = 3
	e, _ := newEngine(t, cfg, nil)
	if !e.Start(epoch) {
		t.Fatalf("expected start")
	}
	if e.Start(epoch) {
		t.Fatalf("second start should be refused")
	}
	e.Advance(epoch.Add(2999 * time.Millisecond))
	st := e.Snapshot().State
	if st.Phase != PhaseCountdown || st.Countdown != 1 || st.Active {
		t.Fatalf("expected countdown at 1, got %+v", st)
	}
	e.Advance(epoch.Add(3 * time.Second))
	st = e.Snapshot().State
	if st.Phase != PhaseRunning || !st.Active {
		t.Fatalf("expected running, got %+v", st)
	}
	if !st.SessionStartTime.Equal(epoch.Add(3 * time.Second)) {
		t.Fatalf("unexpected start time %v", st.SessionStartTime)
	}
	if st.TimeRemaining != 5*time.Second {
		t.Fatalf("expected time seeded from stage, got %v", st.TimeRemaining)
	}
	if e.sched.armed(TimerCountdown) {
		t.Fatalf("countdown timer should be cancelled once running")
	}
	for _, name := range []TimerName{TimerRotation, TimerDecay, TimerStage} {
		if !e.sched.armed(name) {
			t.Fatalf("expected %s armed", name)
		}
	}
}

func TestThreeWrongClicksEndSession(t *testing.T) {
	e, sink := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	for i := 0; i < 4; i++ {
		e.SubmitSelection(targetID(t, e), epoch)
	}
	before := e.Snapshot().State.Energy
	for i := 0; i < 3; i++ {
		out, ok := e.SubmitSelection(wrongID(t, e), epoch)
		if !ok || out.Correct || out.Effect != EffectFlash || out.EnergyDelta != 0 {
			t.Fatalf("unexpected outcome %+v ok=%v", out, ok)
		}
	}
	st := e.Snapshot().State
	if !st.Ended || st.Active || st.Phase != PhaseEnded {
		t.Fatalf("expected ended session, got %+v", st)
	}
	if st.FinalScore != before || before != 4 {
		t.Fatalf("expected final score %d, got %d", before, st.FinalScore)
	}
	if st.WrongStreak != 3 || st.EndReason != EndWrongClicks {
		t.Fatalf("unexpected streak/reason %+v", st)
	}
	if e.Ticking() {
		t.Fatalf("timers must be cancelled on end")
	}
	if _, ok := e.SubmitSelection(targetID(t, e), epoch); ok {
		t.Fatalf("clicks after end must be ignored")
	}
	if len(sink.reqs) != 4 {
		t.Fatalf("expected 4 claims, got %d", len(sink.reqs))
	}
	e.Advance(epoch.Add(time.Minute))
	if got := e.Snapshot().State; got.Energy != before || got.FinalScore != before {
		t.Fatalf("ended session mutated: %+v", got)
	}
}

func TestCorrectClickResetsStreakAndDispatchesClaim(t *testing.T) {
	e, sink := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	e.SubmitSelection(wrongID(t, e), epoch)
	e.SubmitSelection(wrongID(t, e), epoch)
	if e.Snapshot().State.WrongStreak != 2 {
		t.Fatalf("expected streak 2")
	}
	at := epoch.Add(300 * time.Millisecond)
	e.Advance(at)
	out, ok := e.SubmitSelection(targetID(t, e), at)
	if !ok || !out.Correct || out.Effect != EffectPulse || out.EnergyDelta != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	st := e.Snapshot().State
	if st.WrongStreak != 0 || st.Energy != 1 || st.TotalSelections != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
	if !st.LastSelectionTime.Equal(at) || st.TimeRemaining != 5*time.Second {
		t.Fatalf("expected selection time and timer reset, got %+v", st)
	}
	if len(sink.reqs) != 1 {
		t.Fatalf("expected one claim, got %d", len(sink.reqs))
	}
	req := sink.reqs[0]
	if req.EnergyPoints != 1 || req.StageID != "3" || req.Generation != e.Generation() || !req.At.Equal(at) {
		t.Fatalf("unexpected claim %+v", req)
	}
	if last := e.Snapshot().LastOutcome; last == nil || !last.Correct {
		t.Fatalf("expected last outcome to be recorded")
	}
}

func TestPickBeforeSameInstantRotation(t *testing.T) {
	e, sink := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	rotation := epoch.Add(5 * time.Second)
	e.Advance(rotation.Add(-100 * time.Millisecond))
	if next, ok := e.NextDeadline(); !ok || next.After(rotation) {
		t.Fatalf("expected a deadline at or before the rotation, got %v", next)
	}

	shown := targetID(t, e)
	out, ok := e.SubmitSelection(shown, rotation)
	if !ok || !out.Correct {
		t.Fatalf("pick on the displayed target judged wrong: %+v", out)
	}
	e.Advance(rotation)
	st := e.Snapshot().State
	if st.Energy != 1 || st.WrongStreak != 0 || len(sink.reqs) != 1 {
		t.Fatalf("unexpected state after rotation %+v (claims %d)", st, len(sink.reqs))
	}
	if st.TimeRemaining != 5*time.Second-100*time.Millisecond {
		t.Fatalf("stage timer should tick after the pick reset it, got %v", st.TimeRemaining)
	}
	assertCandidateInvariant(t, e.Snapshot())
}

func TestUnknownCandidateIgnored(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	before := e.Snapshot().State
	if _, ok := e.SubmitSelection(42, epoch); ok {
		t.Fatalf("expected unknown id to be ignored")
	}
	if after := e.Snapshot().State; after != before {
		t.Fatalf("ignored click mutated state")
	}
}

func TestDecaySettlesAtZero(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	e.SubmitSelection(targetID(t, e), epoch)
	if e.Snapshot().State.Energy != 1 {
		t.Fatalf("expected energy 1")
	}
	e.Advance(epoch.Add(2500 * time.Millisecond))
	st := e.Snapshot().State
	if st.Energy != 0 {
		t.Fatalf("expected energy to decay to 0, got %d", st.Energy)
	}
	e.Advance(epoch.Add(4 * time.Second))
	if e.Snapshot().State.Energy != 0 {
		t.Fatalf("energy must stay clamped at 0")
	}
}

func TestDecayWaitsForIdle(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	for i := 0; i < 3; i++ {
		e.SubmitSelection(targetID(t, e), epoch)
	}
	at := epoch.Add(900 * time.Millisecond)
	e.Advance(at)
	e.SubmitSelection(targetID(t, e), at)
	e.Advance(epoch.Add(1500 * time.Millisecond))
	if got := e.Snapshot().State.Energy; got != 4 {
		t.Fatalf("expected no decay after recent click, got %d", got)
	}
}

func TestStageAdvanceResetsTimer(t *testing.T) {
	table, err := stage.New([]stage.Definition{
		{ID: "a", EnergyThreshold: 15, TickInterval: 5 * time.Second},
		{ID: "b", EnergyThreshold: 30, TickInterval: 3 * time.Second},
		{ID: "c", EnergyThreshold: 45, TickInterval: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("stage table: %v", err)
	}
	e, sink := newEngine(t, testConfig(), table)
	e.Start(epoch)
	at := epoch
	for i := 0; i < 14; i++ {
		at = at.Add(50 * time.Millisecond)
		e.Advance(at)
		e.SubmitSelection(targetID(t, e), at)
	}
	if st := e.Snapshot().State; st.StageIndex != 0 || st.Energy != 14 {
		t.Fatalf("expected stage 0 at energy 14, got %+v", st)
	}
	at = at.Add(50 * time.Millisecond)
	e.Advance(at)
	e.SubmitSelection(targetID(t, e), at)
	snap := e.Snapshot()
	if snap.State.StageIndex != 1 || snap.Stage.ID != "b" {
		t.Fatalf("expected stage b, got %+v", snap.State)
	}
	if snap.State.TimeRemaining != 3*time.Second {
		t.Fatalf("expected timer reset to 3s, got %v", snap.State.TimeRemaining)
	}
	if iv := e.sched.period(TimerRotation); iv != 3*time.Second {
		t.Fatalf("expected rotation re-armed at 3s, got %v", iv)
	}
	if last := sink.reqs[len(sink.reqs)-1]; last.StageID != "a" {
		t.Fatalf("claim should carry the stage the click was made in, got %q", last.StageID)
	}
	if !snap.HasNext || snap.NextStage.ID != "c" {
		t.Fatalf("expected next stage c")
	}
}

func TestRotationRegeneratesCandidates(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	changed := false
	prev := e.Snapshot().Candidates
	for i := 1; i <= 10; i++ {
		e.Advance(epoch.Add(time.Duration(i) * 5 * time.Second))
		snap := e.Snapshot()
		assertCandidateInvariant(t, snap)
		for j := range prev {
			if prev[j] != snap.Candidates[j] {
				changed = true
			}
		}
		prev = snap.Candidates
	}
	if !changed {
		t.Fatalf("expected rotation to change candidates")
	}
}

func assertCandidateInvariant(t *testing.T, snap Snapshot) {
	t.Helper()
	seen := map[string]struct{}{}
	targets := 0
	for _, c := range snap.Candidates {
		if _, ok := seen[c.Attribute]; ok {
			t.Fatalf("duplicate attribute %s", c.Attribute)
		}
		seen[c.Attribute] = struct{}{}
		if c.IsTarget {
			targets++
			if c.Attribute != snap.State.ActiveTarget {
				t.Fatalf("target flag does not match active target")
			}
		}
	}
	if targets != 1 {
		t.Fatalf("expected one target, got %d", targets)
	}
}

func TestTimerExpiryResetsStage(t *testing.T) {
	table, err := stage.New([]stage.Definition{
		{ID: "a", EnergyThreshold: 2, TickInterval: 5 * time.Second},
		{ID: "b", EnergyThreshold: 4, TickInterval: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("stage table: %v", err)
	}
	e, _ := newEngine(t, testConfig(), table)
	e.Start(epoch)
	e.SubmitSelection(targetID(t, e), epoch)
	e.SubmitSelection(targetID(t, e), epoch)
	e.SubmitSelection(wrongID(t, e), epoch)
	if st := e.Snapshot().State; st.StageIndex != 1 {
		t.Fatalf("expected stage 1, got %+v", st)
	}
	e.Advance(epoch.Add(2 * time.Second))
	st := e.Snapshot().State
	if st.Energy != 0 || st.StageIndex != 0 || st.WrongStreak != 0 || st.Resets != 1 {
		t.Fatalf("expected reset state, got %+v", st)
	}
	if !st.Active || st.Ended {
		t.Fatalf("reset must keep the session active")
	}
	if st.TimeRemaining != 5*time.Second {
		t.Fatalf("expected stage 0 pacing, got %v", st.TimeRemaining)
	}
	if iv := e.sched.period(TimerRotation); iv != 5*time.Second {
		t.Fatalf("expected rotation back at 5s, got %v", iv)
	}
}

func TestTimerExpiryCanEndSession(t *testing.T) {
	cfg := testConfig()
	cfg.Expiry = model.ExpiryEnd
	e, _ := newEngine(t, cfg, nil)
	e.Start(epoch)
	e.SubmitSelection(targetID(t, e), epoch)
	e.Advance(epoch.Add(5 * time.Second))
	st := e.Snapshot().State
	if !st.Ended || st.EndReason != EndTimeExpired {
		t.Fatalf("expected time-expired end, got %+v", st)
	}
	if st.FinalScore != st.Energy {
		t.Fatalf("final score %d != energy %d", st.FinalScore, st.Energy)
	}
	if !st.EndedAt.Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("unexpected end time %v", st.EndedAt)
	}
}

func TestRestart(t *testing.T) {
	e, sink := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	e.SubmitSelection(targetID(t, e), epoch)
	gen := e.Generation()
	later := epoch.Add(time.Second)
	e.Restart(later)
	st := e.Snapshot().State
	if st.Phase != PhaseIdle || st.Energy != 0 || st.Throughput != 0 || st.TotalSelections != 0 {
		t.Fatalf("expected fresh idle state, got %+v", st)
	}
	if e.Generation() != gen+1 {
		t.Fatalf("expected generation bump")
	}
	if e.Snapshot().LastOutcome != nil || e.Ticking() {
		t.Fatalf("restart must clear outcome and timers")
	}
	if e.meter.Len() != 0 {
		t.Fatalf("restart must clear throughput history")
	}
	e.Start(later)
	e.SubmitSelection(targetID(t, e), later)
	if sink.reqs[len(sink.reqs)-1].Generation != gen+1 {
		t.Fatalf("claim should carry the new generation")
	}
}

func TestRestartRunning(t *testing.T) {
	cfg := testConfig()
	cfg.RestartRunning = true
	cfg.CountdownSteps = 3
	e, _ := newEngine(t, cfg, nil)
	e.Restart(epoch)
	st := e.Snapshot().State
	if st.Phase != PhaseRunning || !st.Active {
		t.Fatalf("expected restart straight into running, got %+v", st)
	}
}

func TestThroughputTracksClicks(t *testing.T) {
	e, _ := newEngine(t, testConfig(), nil)
	e.Start(epoch)
	for i := 0; i < 5; i++ {
		at := epoch.Add(time.Duration(i) * 200 * time.Millisecond)
		e.Advance(at)
		e.SubmitSelection(targetID(t, e), at)
	}
	if got := e.Snapshot().State.Throughput; got != 5 {
		t.Fatalf("expected throughput 5, got %d", got)
	}
	at := epoch.Add(3 * time.Second)
	e.Advance(at)
	e.SubmitSelection(targetID(t, e), at)
	if got := e.Snapshot().State.Throughput; got != 1 {
		t.Fatalf("expected throughput 1, got %d", got)
	}
}

func TestRandomPlayInvariants(t *testing.T) {
	table, err := stage.New([]stage.Definition{
		{ID: "a", EnergyThreshold: 3, TickInterval: 4 * time.Second},
		{ID: "b", EnergyThreshold: 6, TickInterval: 3 * time.Second},
		{ID: "c", EnergyThreshold: 9, TickInterval: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("stage table: %v", err)
	}
	cfg := testConfig()
	cfg.WrongClickLimit = 5
	rnd := rand.New(rand.NewSource(3))
	for game := 0; game < 50; game++ {
		cfg.Seed = int64(game + 1)
		e, _ := newEngine(t, cfg, table)
		e.Start(epoch)
		now := epoch
		prev := e.Snapshot().State
		for step := 0; step < 400 && !prev.Ended; step++ {
			now = now.Add(time.Duration(rnd.Intn(700)) * time.Millisecond)
			e.Advance(now)
			if rnd.Intn(4) == 0 {
				e.SubmitSelection(wrongID(t, e), now)
			} else {
				e.SubmitSelection(targetID(t, e), now)
			}
			st := e.Snapshot().State
			if st.Energy < 0 {
				t.Fatalf("negative energy %d", st.Energy)
			}
			if st.WrongStreak < 0 || st.WrongStreak > cfg.WrongClickLimit {
				t.Fatalf("streak out of range %d", st.WrongStreak)
			}
			if st.StageIndex < prev.StageIndex && st.Resets == prev.Resets {
				t.Fatalf("stage regressed without a timer reset")
			}
			if st.StageIndex > prev.StageIndex && st.Energy < table.Lookup(st.StageIndex-1).EnergyThreshold {
				t.Fatalf("stage advanced below threshold")
			}
			if st.Ended && st.FinalScore != st.Energy {
				t.Fatalf("final score %d differs from energy %d", st.FinalScore, st.Energy)
			}
			prev = st
		}
	}
}

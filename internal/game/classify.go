package game

import (
	"time"

	"github.com/verte-zerg/pireactor/internal/meter"
	"github.com/verte-zerg/pireactor/internal/model"
)

// claimPoints is the energy reported per correct selection.
const claimPoints = 1

// EffectKind names the feedback animation for a selection.
type EffectKind string

const (
	EffectPulse EffectKind = "pulse"
	EffectFlash EffectKind = "flash"
)

// Selection is a player pick of one candidate.
type Selection struct {
	CandidateID int
	At          time.Time
}

// ClickOutcome is the transient result of a classified selection.
type ClickOutcome struct {
	CandidateID int
	Correct     bool
	EnergyDelta int
	Effect      EffectKind
	At          time.Time
}

// SubmitSelection classifies a pick of candidateID. It returns false when the
// pick was ignored: the session is not running or the id is unknown.
func (e *Engine) SubmitSelection(candidateID int, now time.Time) (ClickOutcome, bool) {
	return e.classify(Selection{CandidateID: candidateID, At: now})
}

func (e *Engine) classify(sel Selection) (ClickOutcome, bool) {
	st := &e.state
	if !st.Active || st.Ended {
		return ClickOutcome{}, false
	}
	cand, ok := e.candidate(sel.CandidateID)
	if !ok {
		return ClickOutcome{}, false
	}

	e.meter.Record(sel.At)
	st.Throughput = e.meter.Rate(sel.At, meter.DefaultWindow)

	out := ClickOutcome{CandidateID: sel.CandidateID, At: sel.At}
	if cand.Attribute == st.ActiveTarget {
		e.applyCorrect(sel.At, &out)
	} else {
		e.applyWrong(sel.At, &out)
	}
	e.lastOutcome = &out
	return out, true
}

func (e *Engine) applyCorrect(at time.Time, out *ClickOutcome) {
	st := &e.state
	out.Correct = true
	out.Effect = EffectPulse
	out.EnergyDelta = e.addEnergy(e.cfg.CorrectClickGain)

	st.WrongStreak = 0
	st.LastSelectionTime = at
	current := e.currentStage()
	st.TimeRemaining = current.TickInterval
	st.TotalSelections++
	e.checkProgression(at)

	if e.claims != nil {
		e.claims.DispatchClaim(ClaimRequest{
			Generation:   st.Generation,
			EnergyPoints: claimPoints,
			StageID:      current.ID,
			At:           at,
		})
	}
}

func (e *Engine) applyWrong(at time.Time, out *ClickOutcome) {
	st := &e.state
	out.Effect = EffectFlash
	out.EnergyDelta = e.addEnergy(e.cfg.WrongClickGain)
	if out.EnergyDelta > 0 {
		e.checkProgression(at)
	}
	st.WrongStreak++
	if st.WrongStreak >= e.cfg.WrongClickLimit {
		st.WrongStreak = e.cfg.WrongClickLimit
		e.end(at, EndWrongClicks)
	}
}

// addEnergy applies delta with energy clamped at zero and returns the change.
func (e *Engine) addEnergy(delta int) int {
	before := e.state.Energy
	e.state.Energy += delta
	if e.state.Energy < 0 {
		e.state.Energy = 0
	}
	return e.state.Energy - before
}

func (e *Engine) candidate(id int) (model.Candidate, bool) {
	for _, c := range e.candidates {
		if c.ID == id {
			return c, true
		}
	}
	return model.Candidate{}, false
}

// Package sim drives a reactor session without a terminal.
package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/game"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/stage"
)

// Player tuning for the autoplayer.
type Player struct {
	Accuracy float64
	Reaction time.Duration
	Limit    time.Duration
	Seed     int64
}

// Options configures Run.
type Options struct {
	Game      model.GameConfig
	Stages    *stage.Table
	Palette   []string
	Player    Player
	Submitter *claim.Submitter
	Start     time.Time
}

// Result summarizes a simulated session.
type Result struct {
	Final    game.Snapshot
	Picks    int
	Wrong    int
	Elapsed  time.Duration
	Session  model.SessionRecord
	Claims   []claim.Result
	TimedOut bool
}

// Run plays one session on a virtual clock. Claims are submitted in the
// background and Run waits for all of them before returning.
func Run(ctx context.Context, opts Options) (Result, error) {
	p := opts.Player
	if p.Accuracy < 0 || p.Accuracy > 1 {
		return Result{}, fmt.Errorf("accuracy must be between 0 and 1")
	}
	if p.Reaction <= 0 {
		return Result{}, fmt.Errorf("reaction time must be > 0")
	}
	if p.Limit <= 0 {
		return Result{}, fmt.Errorf("time limit must be > 0")
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	var (
		mu    sync.Mutex
		res   Result
		async *claim.Async
	)
	if opts.Submitter != nil {
		async = claim.NewAsync(opts.Submitter)
	}
	dispatch := game.DispatchFunc(func(req game.ClaimRequest) {
		if async == nil {
			return
		}
		async.Go(ctx, req.EnergyPoints, req.StageID, func(r claim.Result) {
			mu.Lock()
			defer mu.Unlock()
			res.Claims = append(res.Claims, r)
		})
	})
	engine, err := game.New(opts.Game, opts.Stages, opts.Palette, dispatch, start)
	if err != nil {
		return Result{}, err
	}

	now := start
	engine.Start(now)
	for engine.Snapshot().State.Phase == game.PhaseCountdown {
		now = now.Add(game.CountdownStep)
		engine.Advance(now)
	}
	runStart := now
	for {
		now = now.Add(p.Reaction)
		engine.Advance(now)
		snap := engine.Snapshot()
		if snap.State.Ended {
			break
		}
		if now.Sub(runStart) >= p.Limit {
			res.TimedOut = true
			break
		}
		id, correct := choose(rnd, snap.Candidates, p.Accuracy)
		if _, ok := engine.SubmitSelection(id, now); !ok {
			continue
		}
		res.Picks++
		if !correct {
			res.Wrong++
		}
	}
	if async != nil {
		async.Wait()
	}

	mu.Lock()
	defer mu.Unlock()
	res.Final = engine.Snapshot()
	res.Elapsed = now.Sub(runStart)
	st := res.Final.State
	endedAt := st.EndedAt
	if !st.Ended {
		endedAt = now
	}
	res.Session = model.SessionRecord{
		StartedAt:       st.SessionStartTime,
		EndedAt:         endedAt,
		FinalScore:      finalScore(st),
		StageID:         res.Final.Stage.ID,
		StageIndex:      st.StageIndex,
		TotalSelections: st.TotalSelections,
		Resets:          st.Resets,
		EndReason:       endReason(res),
		DurationMs:      endedAt.Sub(st.SessionStartTime).Milliseconds(),
	}
	log.Printf("sim: %d picks, %d wrong, score %d, stage %s", res.Picks, res.Wrong, res.Session.FinalScore, res.Session.StageID)
	return res, nil
}

func choose(rnd *rand.Rand, candidates []model.Candidate, accuracy float64) (int, bool) {
	wantTarget := rnd.Float64() < accuracy || len(candidates) == 1
	wrong := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if c.IsTarget && wantTarget {
			return c.ID, true
		}
		if !c.IsTarget {
			wrong = append(wrong, c.ID)
		}
	}
	return wrong[rnd.Intn(len(wrong))], false
}

func finalScore(st game.State) int {
	if st.Ended {
		return st.FinalScore
	}
	return st.Energy
}

func endReason(res Result) string {
	if res.Final.State.Ended {
		return res.Final.State.EndReason
	}
	return "time-limit"
}

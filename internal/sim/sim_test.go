package sim

import (
	"context"
	"testing"
	"time"

	"github.com/verte-zerg/pireactor/internal/claim"
	"github.com/verte-zerg/pireactor/internal/game"
	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/palette"
	"github.com/verte-zerg/pireactor/internal/stage"
)

func newOptions(player Player) Options {
	stub := claim.NewStubClient()
	stub.Latency = 0
	cfg := model.DefaultGameConfig()
	cfg.Seed = 11
	return Options{
		Game:      cfg,
		Stages:    stage.Default(),
		Palette:   palette.Default(),
		Player:    player,
		Submitter: claim.NewSubmitter(stub, claim.Config{}),
		Start:     time.Unix(1_700_000_000, 0),
	}
}

func TestPerfectPlayerClimbsStages(t *testing.T) {
	res, err := Run(context.Background(), newOptions(Player{
		Accuracy: 1,
		Reaction: 200 * time.Millisecond,
		Limit:    10 * time.Second,
		Seed:     3,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut || res.Picks != 49 || res.Wrong != 0 {
		t.Fatalf("unexpected play %+v", res)
	}
	st := res.Final.State
	if st.Energy != 49 || st.StageIndex != 3 || res.Final.Stage.ID != "3.141" {
		t.Fatalf("unexpected final state energy=%d stage=%d", st.Energy, st.StageIndex)
	}
	if len(res.Claims) != 49 {
		t.Fatalf("expected 49 claims, got %d", len(res.Claims))
	}
	for _, c := range res.Claims {
		if !c.Success {
			t.Fatalf("unexpected failed claim %+v", c)
		}
	}
	if res.Session.EndReason != "time-limit" || res.Session.FinalScore != 49 || res.Session.DurationMs != 10_000 {
		t.Fatalf("unexpected session record %+v", res.Session)
	}
}

func TestHopelessPlayerEndsOnWrongClicks(t *testing.T) {
	res, err := Run(context.Background(), newOptions(Player{
		Accuracy: 0,
		Reaction: 300 * time.Millisecond,
		Limit:    time.Minute,
		Seed:     5,
	}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TimedOut || res.Picks != 3 || res.Wrong != 3 || len(res.Claims) != 0 {
		t.Fatalf("unexpected play %+v", res)
	}
	if !res.Final.State.Ended || res.Session.EndReason != game.EndWrongClicks || res.Session.FinalScore != 0 {
		t.Fatalf("unexpected ending %+v", res.Session)
	}
}

func TestRunRejectsBadPlayer(t *testing.T) {
	bad := []Player{
		{Accuracy: 1.5, Reaction: time.Second, Limit: time.Second},
		{Accuracy: 0.5, Reaction: 0, Limit: time.Second},
		{Accuracy: 0.5, Reaction: time.Second, Limit: 0},
	}
	for _, p := range bad {
		if _, err := Run(context.Background(), newOptions(p)); err == nil {
			t.Fatalf("expected error for %+v", p)
		}
	}
}

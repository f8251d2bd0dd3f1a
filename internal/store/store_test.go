package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "pireactor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSessionsRoundTripAndFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 4; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		_, err := st.InsertSession(ctx, model.SessionRecord{
			StartedAt:       start,
			EndedAt:         start.Add(time.Minute),
			FinalScore:      10 * (i + 1),
			StageID:         "3.1",
			StageIndex:      1,
			TotalSelections: 12 + i,
			EndReason:       "wrong-clicks",
			DurationMs:      time.Minute.Milliseconds(),
		})
		if err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}

	all, err := st.ListSessions(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(all) != 4 || all[0].FinalScore != 10 || all[3].FinalScore != 40 {
		t.Fatalf("unexpected sessions %+v", all)
	}
	if all[3].StageID != "3.1" || all[3].TotalSelections != 15 || all[3].EndReason != "wrong-clicks" {
		t.Fatalf("fields not round-tripped: %+v", all[3])
	}

	since := base.Add(150 * time.Minute)
	filtered, err := st.ListSessions(ctx, model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(filtered) != 1 || filtered[0].FinalScore != 40 {
		t.Fatalf("unexpected since filter result %+v", filtered)
	}

	last, err := st.ListSessions(ctx, model.StatsConfig{Last: 2})
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(last) != 2 || last[0].FinalScore != 30 {
		t.Fatalf("unexpected last filter result %+v", last)
	}
}

func TestClaimsUpsertListAndGet(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1700000000000).UTC()
	recs := []model.ClaimRecord{
		{ID: "c1", Timestamp: base, EnergyPoints: 1, StageID: "3", Outcome: "failed", Attempts: 4, Error: "timeout"},
		{ID: "c2", Timestamp: base.Add(time.Second), EnergyPoints: 1, StageID: "3.1", Outcome: "success", Attempts: 1},
	}
	for _, rec := range recs {
		if err := st.InsertClaim(ctx, rec); err != nil {
			t.Fatalf("insert claim: %v", err)
		}
	}
	retry := recs[0]
	retry.Outcome = "success"
	retry.Error = ""
	if err := st.InsertClaim(ctx, retry); err != nil {
		t.Fatalf("upsert claim: %v", err)
	}

	list, err := st.ListClaims(ctx, 10)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c2" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	got, ok, err := st.GetClaim(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("get claim: ok=%v err=%v", ok, err)
	}
	if got.Outcome != "success" || got.Attempts != 4 || !got.Timestamp.Equal(base) {
		t.Fatalf("unexpected claim %+v", got)
	}
	if _, ok, err := st.GetClaim(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing claim, ok=%v err=%v", ok, err)
	}

	counts, err := st.ClaimCounts(ctx)
	if err != nil {
		t.Fatalf("claim counts: %v", err)
	}
	if counts["success"] != 2 || counts["failed"] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if none, _ := st.ListClaims(ctx, 0); none != nil {
		t.Fatalf("expected nil for zero limit")
	}
}

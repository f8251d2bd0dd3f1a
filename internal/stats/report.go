package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/pireactor/internal/model"
	"github.com/verte-zerg/pireactor/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions    []model.SessionAggregate
	Claims      []model.ClaimRecord
	ClaimCounts map[string]int
}

// BuildReport loads sessions and recent claims for rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig, claimLimit int) (Report, error) {
	sessions, err := st.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	claims, err := st.ListClaims(ctx, claimLimit)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list claims: %w", err)
	}
	counts, err := st.ClaimCounts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to count claims: %w", err)
	}
	return Report{
		Sessions:    sessions,
		Claims:      claims,
		ClaimCounts: counts,
	}, nil
}

// Render writes the full report sized to width columns.
func (r Report) Render(w io.Writer, window, width int) error {
	if err := RenderSummary(w, r.Sessions); err != nil {
		return err
	}
	if err := RenderScoreCurve(w, r.Sessions, window, width-2); err != nil {
		return err
	}
	if err := RenderStageTable(w, r.Sessions); err != nil {
		return err
	}
	if len(r.Claims) == 0 {
		return nil
	}
	return RenderClaims(w, r.Claims, r.ClaimCounts)
}

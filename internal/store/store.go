// Package store handles SQLite persistence of finished sessions and claims.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/pireactor/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for session history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			final_score INTEGER NOT NULL,
			stage_id TEXT NOT NULL,
			stage_index INTEGER NOT NULL,
			total_selections INTEGER NOT NULL,
			resets INTEGER NOT NULL,
			end_reason TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			claimed_at TEXT NOT NULL,
			energy_points INTEGER NOT NULL,
			stage_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_claims_claimed_at ON claims(claimed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a finished session.
func (s *Store) InsertSession(ctx context.Context, rec model.SessionRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, final_score, stage_id, stage_index, total_selections, resets, end_reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		rec.FinalScore,
		rec.StageID,
		rec.StageIndex,
		rec.TotalSelections,
		rec.Resets,
		rec.EndReason,
		rec.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSessions returns session aggregates filtered by cfg, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, formatTime(*cfg.Since))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, final_score, stage_index, stage_id, total_selections, end_reason, duration_ms
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.FinalScore, &agg.StageIndex, &agg.StageID, &agg.TotalSelections, &agg.EndReason, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return sessions, nil
}

// InsertClaim stores or replaces a claim record.
func (s *Store) InsertClaim(ctx context.Context, rec model.ClaimRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (id, claimed_at, energy_points, stage_id, outcome, attempts, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			claimed_at = excluded.claimed_at,
			energy_points = excluded.energy_points,
			stage_id = excluded.stage_id,
			outcome = excluded.outcome,
			attempts = excluded.attempts,
			error = excluded.error`,
		rec.ID,
		formatTime(rec.Timestamp),
		rec.EnergyPoints,
		rec.StageID,
		rec.Outcome,
		rec.Attempts,
		rec.Error,
	)
	return err
}

// ListClaims returns up to limit claims, newest first.
func (s *Store) ListClaims(ctx context.Context, limit int) ([]model.ClaimRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, claimed_at, energy_points, stage_id, outcome, attempts, error
		 FROM claims
		 ORDER BY claimed_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.ClaimRecord
	for rows.Next() {
		rec, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetClaim loads one claim by id.
func (s *Store) GetClaim(ctx context.Context, id string) (model.ClaimRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, claimed_at, energy_points, stage_id, outcome, attempts, error
		 FROM claims WHERE id = ?`, id)
	rec, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClaimRecord{}, false, nil
	}
	if err != nil {
		return model.ClaimRecord{}, false, err
	}
	return rec, true, nil
}

// ClaimCounts returns how many stored claims carry each outcome.
func (s *Store) ClaimCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM claims GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (model.ClaimRecord, error) {
	var rec model.ClaimRecord
	var claimedAt string
	if err := row.Scan(&rec.ID, &claimedAt, &rec.EnergyPoints, &rec.StageID, &rec.Outcome, &rec.Attempts, &rec.Error); err != nil {
		return model.ClaimRecord{}, err
	}
	parsed, err := time.Parse(timeLayout, claimedAt)
	if err != nil {
		return model.ClaimRecord{}, err
	}
	rec.Timestamp = parsed
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/launchradar/launchradar/internal/cycle"
)

// Postgres persists sessions in the cycle_sessions table. Counters and the
// error log are stored as JSONB so the record round-trips without a schema
// change per counter.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres creates a PostgreSQL-backed session store.
func NewPostgres(db *sqlx.DB, timeout time.Duration) *Postgres {
	return &Postgres{db: db, timeout: timeout}
}

type sessionRow struct {
	ID        string       `db:"id"`
	Status    string       `db:"status"`
	Phase     string       `db:"phase"`
	Progress  int          `db:"progress"`
	Counters  []byte       `db:"counters"`
	ErrorLog  []byte       `db:"error_log"`
	StartedAt time.Time    `db:"started_at"`
	EndedAt   sql.NullTime `db:"ended_at"`
}

// Create inserts a new session record.
func (p *Postgres) Create(ctx context.Context, snap cycle.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	countersJSON, errorLogJSON, err := marshalParts(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cycle_sessions
		(id, status, phase, progress, counters, error_log, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := p.db.ExecContext(ctx, query,
		snap.ID, string(snap.Status), string(snap.Phase), snap.Progress,
		countersJSON, errorLogJSON, snap.StartedAt, endedAt(snap)); err != nil {
		return fmt.Errorf("insert session %s: %w", snap.ID, err)
	}
	return nil
}

// Update overwrites the stored record for a session.
func (p *Postgres) Update(ctx context.Context, snap cycle.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	countersJSON, errorLogJSON, err := marshalParts(snap)
	if err != nil {
		return err
	}

	query := `
		UPDATE cycle_sessions SET
			status = $2, phase = $3, progress = $4,
			counters = $5, error_log = $6, started_at = $7, ended_at = $8
		WHERE id = $1`
	res, err := p.db.ExecContext(ctx, query,
		snap.ID, string(snap.Status), string(snap.Phase), snap.Progress,
		countersJSON, errorLogJSON, snap.StartedAt, endedAt(snap))
	if err != nil {
		return fmt.Errorf("update session %s: %w", snap.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update session %s: %w", snap.ID, ErrNotFound)
	}
	return nil
}

// Get returns the stored record for a session id.
func (p *Postgres) Get(ctx context.Context, id string) (cycle.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var row sessionRow
	query := `
		SELECT id, status, phase, progress, counters, error_log, started_at, ended_at
		FROM cycle_sessions
		WHERE id = $1`
	if err := p.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return cycle.Snapshot{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
		}
		return cycle.Snapshot{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.snapshot()
}

// Recent returns up to n sessions, newest first.
func (p *Postgres) Recent(ctx context.Context, n int) ([]cycle.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var rows []sessionRow
	query := `
		SELECT id, status, phase, progress, counters, error_log, started_at, ended_at
		FROM cycle_sessions
		ORDER BY started_at DESC
		LIMIT $1`
	if err := p.db.SelectContext(ctx, &rows, query, n); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]cycle.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := row.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r sessionRow) snapshot() (cycle.Snapshot, error) {
	snap := cycle.Snapshot{
		ID:        r.ID,
		Status:    cycle.Status(r.Status),
		Phase:     cycle.Phase(r.Phase),
		Progress:  r.Progress,
		StartedAt: r.StartedAt,
	}
	if r.EndedAt.Valid {
		snap.EndedAt = r.EndedAt.Time
	}
	if len(r.Counters) > 0 {
		if err := json.Unmarshal(r.Counters, &snap.Counters); err != nil {
			return cycle.Snapshot{}, fmt.Errorf("decode counters for %s: %w", r.ID, err)
		}
	}
	if len(r.ErrorLog) > 0 {
		if err := json.Unmarshal(r.ErrorLog, &snap.ErrorLog); err != nil {
			return cycle.Snapshot{}, fmt.Errorf("decode error log for %s: %w", r.ID, err)
		}
	}
	return snap, nil
}

func marshalParts(snap cycle.Snapshot) (counters, errorLog []byte, err error) {
	counters, err = json.Marshal(snap.Counters)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal counters for %s: %w", snap.ID, err)
	}
	errorLog, err = json.Marshal(snap.ErrorLog)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal error log for %s: %w", snap.ID, err)
	}
	return counters, errorLog, nil
}

func endedAt(snap cycle.Snapshot) sql.NullTime {
	if snap.EndedAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: snap.EndedAt, Valid: true}
}

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/domain"
)

// Postgres persists feed health in the feed_health table.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgres creates a PostgreSQL-backed health registry.
func NewPostgres(db *sqlx.DB, timeout time.Duration) *Postgres {
	return &Postgres{db: db, timeout: timeout}
}

type healthRow struct {
	SourceID      string    `db:"source_id"`
	SuccessCount  int       `db:"success_count"`
	FailureCount  int       `db:"failure_count"`
	LastSuccess   time.Time `db:"last_success"`
	DiscoveryRate float64   `db:"discovery_rate"`
}

// Health loads the stored health for a source. A missing row or a query
// failure both report not-found; the scraper starts the source fresh.
func (p *Postgres) Health(ctx context.Context, sourceID string) (domain.FeedHealth, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var row healthRow
	query := `
		SELECT source_id, success_count, failure_count, last_success, discovery_rate
		FROM feed_health
		WHERE source_id = $1`
	if err := p.db.GetContext(ctx, &row, query, sourceID); err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Str("source", sourceID).Msg("feed health lookup failed")
		}
		return domain.FeedHealth{}, false
	}
	return domain.FeedHealth{
		SourceID:      row.SourceID,
		SuccessCount:  row.SuccessCount,
		FailureCount:  row.FailureCount,
		LastSuccess:   row.LastSuccess,
		DiscoveryRate: row.DiscoveryRate,
	}, true
}

// UpdateHealth upserts the health record for a source.
func (p *Postgres) UpdateHealth(ctx context.Context, sourceID string, health domain.FeedHealth) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	query := `
		INSERT INTO feed_health
		(source_id, success_count, failure_count, last_success, discovery_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source_id) DO UPDATE SET
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			last_success = EXCLUDED.last_success,
			discovery_rate = EXCLUDED.discovery_rate,
			updated_at = NOW()`
	if _, err := p.db.ExecContext(ctx, query,
		sourceID, health.SuccessCount, health.FailureCount, health.LastSuccess, health.DiscoveryRate); err != nil {
		return fmt.Errorf("upsert feed health for %s: %w", sourceID, err)
	}
	return nil
}

// All returns every stored health record ordered by discovery rate.
func (p *Postgres) All(ctx context.Context) ([]domain.FeedHealth, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var rows []healthRow
	query := `
		SELECT source_id, success_count, failure_count, last_success, discovery_rate
		FROM feed_health
		ORDER BY discovery_rate DESC`
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list feed health: %w", err)
	}
	out := make([]domain.FeedHealth, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.FeedHealth{
			SourceID:      row.SourceID,
			SuccessCount:  row.SuccessCount,
			FailureCount:  row.FailureCount,
			LastSuccess:   row.LastSuccess,
			DiscoveryRate: row.DiscoveryRate,
		})
	}
	return out, nil
}

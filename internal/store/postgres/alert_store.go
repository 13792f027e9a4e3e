package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertStore implements domain.AlertJournal.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// UpsertAlert records a new alert or updates the severity, message, count
// and acknowledgement of a known one.
func (s *AlertStore) UpsertAlert(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alert_journal (
			id, category, venue_id, severity, message,
			acknowledged, occurrences, raised_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			severity     = EXCLUDED.severity,
			message      = EXCLUDED.message,
			acknowledged = EXCLUDED.acknowledged,
			occurrences  = EXCLUDED.occurrences,
			updated_at   = EXCLUDED.updated_at`

	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = a.Timestamp
	}
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Category, a.VenueID, a.Severity.String(), a.Message,
		a.Acknowledged, max(a.Occurrences, 1), a.Timestamp, updated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert alert %s: %w", a.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AlertJournal = (*AlertStore)(nil)

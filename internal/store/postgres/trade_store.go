package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TradeStore implements domain.TradeJournal. Decimals cross the wire as
// text and are stored as NUMERIC, so no precision is lost either way.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, action_id, opportunity_id, ts, venue_id, bucket,
	kind, side, size::text, price::text, fees::text, status, reason, tx_ref`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t                 domain.TradeRecord
			size, price, fees string
		)
		if err := rows.Scan(
			&t.ID, &t.ActionID, &t.OpportunityID, &t.Timestamp, &t.VenueID, &t.Bucket,
			&t.Kind, &t.Side, &size, &price, &fees, &t.Status, &t.Reason, &t.TxRef,
		); err != nil {
			return nil, err
		}
		var err error
		if t.Size, err = decimal.NewFromString(size); err != nil {
			return nil, fmt.Errorf("trade %s size: %w", t.ID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.ID, err)
		}
		if t.Fees, err = decimal.NewFromString(fees); err != nil {
			return nil, fmt.Errorf("trade %s fees: %w", t.ID, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertTrades inserts records in one batch. Records already journaled
// (same id) are skipped.
func (s *TradeStore) InsertTrades(ctx context.Context, trades []domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	const query = `
		INSERT INTO trade_journal (
			id, action_id, opportunity_id, ts, venue_id, bucket,
			kind, side, size, price, fees, status, reason, tx_ref
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.ID, t.ActionID, t.OpportunityID, t.Timestamp, t.VenueID, t.Bucket,
			string(t.Kind), string(t.Side), t.Size.String(), t.Price.String(), t.Fees.String(),
			string(t.Status), t.Reason, t.TxRef,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade %s (batch item %d): %w", trades[i].ID, i, err)
		}
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_journal ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trades: %w", err)
	}
	return trades, nil
}

// ListByVenue returns up to limit records of one venue, newest first.
func (s *TradeStore) ListByVenue(ctx context.Context, venueID string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trade_journal WHERE venue_id = $1 ORDER BY ts DESC LIMIT $2`,
		venueID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by venue: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by venue: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeJournal = (*TradeStore)(nil)

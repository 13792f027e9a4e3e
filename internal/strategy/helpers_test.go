package strategy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
)

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// snapAround builds a one-level book with mid at price, a spread of two
// ticks of 0.001 and qty on each side.
func snapAround(t *testing.T, venue, pair, price, qty string) domain.MarketSnapshot {
	t.Helper()
	tick := dec("0.001")
	mid := dec(price)
	snap, err := analytics.BuildSnapshot(venue, pair, t0,
		[]domain.PriceLevel{{Price: mid.Sub(tick), Quantity: dec(qty)}},
		[]domain.PriceLevel{{Price: mid.Add(tick), Quantity: dec(qty)}},
	)
	if err != nil {
		t.Fatalf("snapshot %s: %v", venue, err)
	}
	return snap
}

func tickOf(snaps ...domain.MarketSnapshot) Tick {
	m := make(map[string]domain.MarketSnapshot, len(snaps))
	for _, s := range snaps {
		m[s.VenueID] = s
	}
	return Tick{Seq: 1, Now: t0, Snapshots: m, Previous: map[string]domain.MarketSnapshot{}}
}

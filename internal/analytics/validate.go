package analytics

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// BuildSnapshot validates raw best-first levels and derives the top of book,
// mid and spread. The returned snapshot owns copies of the level slices.
func BuildSnapshot(venueID, pair string, ts time.Time, bids, asks []domain.PriceLevel) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{
		VenueID:   venueID,
		Pair:      pair,
		Timestamp: ts,
		Bids:      append([]domain.PriceLevel(nil), bids...),
		Asks:      append([]domain.PriceLevel(nil), asks...),
	}
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("analytics: venue %s: %w: %w", venueID, domain.ErrDataIntegrity, domain.ErrEmptyBook)
	}
	snap.BestBid = snap.Bids[0]
	snap.BestAsk = snap.Asks[0]
	snap.MidPrice = Mid(snap.BestBid.Price, snap.BestAsk.Price)
	snap.SpreadPercent = SpreadPercent(snap.BestBid.Price, snap.BestAsk.Price, snap.MidPrice)
	if err := Validate(snap); err != nil {
		return domain.MarketSnapshot{}, err
	}
	return snap, nil
}

// Validate rejects snapshots that must never reach the detectors: empty
// sides, crossed books, non-positive prices or quantities, and levels that
// are not strictly ordered best-first. Every error wraps
// domain.ErrDataIntegrity.
func Validate(s domain.MarketSnapshot) error {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return integrity(s.VenueID, domain.ErrEmptyBook, "bids=%d asks=%d", len(s.Bids), len(s.Asks))
	}
	if err := checkSide(s.VenueID, "bid", s.Bids, true); err != nil {
		return err
	}
	if err := checkSide(s.VenueID, "ask", s.Asks, false); err != nil {
		return err
	}
	if s.Asks[0].Price.LessThanOrEqual(s.Bids[0].Price) {
		return integrity(s.VenueID, domain.ErrCrossedBook, "bid %s >= ask %s",
			s.Bids[0].Price.String(), s.Asks[0].Price.String())
	}
	return nil
}

func checkSide(venueID, side string, levels []domain.PriceLevel, descending bool) error {
	for i, lvl := range levels {
		if !lvl.Price.IsPositive() {
			return integrity(venueID, domain.ErrNegativePrice, "%s level %d price %s", side, i, lvl.Price.String())
		}
		if !lvl.Quantity.IsPositive() {
			return integrity(venueID, domain.ErrNegativeQuantity, "%s level %d quantity %s", side, i, lvl.Quantity.String())
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1].Price
		if descending && !lvl.Price.LessThan(prev) || !descending && !lvl.Price.GreaterThan(prev) {
			return integrity(venueID, domain.ErrNonMonotonicLevels, "%s level %d price %s after %s",
				side, i, lvl.Price.String(), prev.String())
		}
	}
	return nil
}

func integrity(venueID string, kind error, format string, args ...any) error {
	return fmt.Errorf("analytics: venue %s: %w: %w: %s", venueID, domain.ErrDataIntegrity, kind, fmt.Sprintf(format, args...))
}

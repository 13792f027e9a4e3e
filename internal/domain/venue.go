package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Venue is the uniform read/write capability set of a trading venue. One
// implementation may serve several venue ids.
type Venue interface {
	OrderBook(ctx context.Context, venueID string, depth int) (MarketSnapshot, error)
	Stats(ctx context.Context, venueID string) (VenueStats, error)
	EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side OrderSide) (Conversion, error)
	// Submit executes the action and waits for confirmation. It returns
	// Filled, Resting or Cancelled; anything unconfirmed is an error.
	Submit(ctx context.Context, action Action) (Outcome, error)
}

// HealthSource is implemented by venues that can enumerate borrower health.
type HealthSource interface {
	AccountHealth(ctx context.Context, venueID string) ([]AccountHealth, error)
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Sign is +1 for buys and -1 for sells.
func (s OrderSide) Sign() decimal.Decimal {
	if s == OrderSideBuy {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// ActionKind is the instruction type understood by venues.
type ActionKind string

const (
	ActionMarket ActionKind = "market"
	ActionLimit  ActionKind = "limit"
	ActionCancel ActionKind = "cancel"
	ActionSwap   ActionKind = "swap"
)

// Action is a concrete instruction for a venue. Every Action carries the
// Opportunity that produced it.
type Action struct {
	ID      string          `json:"id"`
	Kind    ActionKind      `json:"kind"`
	VenueID string          `json:"venue_id"`
	Bucket  string          `json:"bucket"`
	Side    OrderSide       `json:"side,omitempty"`
	Size    decimal.Decimal `json:"size"`
	// LimitPrice is the limit price for limit orders, the worst acceptable
	// price for market orders and the minimum output amount for swaps.
	LimitPrice  decimal.Decimal `json:"limit_price_or_min_out"`
	OrderID     string          `json:"order_id,omitempty"`
	Opportunity Opportunity     `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OpportunityID returns the id of the rationale, or "" when missing.
func (a Action) OpportunityID() string {
	if a.Opportunity == nil {
		return ""
	}
	return a.Opportunity.ID()
}

// Rationale is a human-readable back-reference to the producing Opportunity.
func (a Action) Rationale() string {
	if a.Opportunity == nil {
		return "none"
	}
	return fmt.Sprintf("%s %s: %s", a.Opportunity.Kind(), a.Opportunity.ID(), a.Opportunity.Summary())
}

// SignedSize is Size with the sign of Side. Cancels are zero.
func (a Action) SignedSize() decimal.Decimal {
	if a.Kind == ActionCancel {
		return decimal.Zero
	}
	return a.Size.Mul(a.Side.Sign())
}

// Order is a resting limit order owned by the bot.
type Order struct {
	ID            string          `json:"id"`
	VenueID       string          `json:"venue_id"`
	Bucket        string          `json:"bucket"`
	Side          OrderSide       `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	ActionID      string          `json:"action_id"`
	OpportunityID string          `json:"opportunity_id"`
	PlacedAt      time.Time       `json:"placed_at"`
}

// Age returns how long the order has rested as of now.
func (o Order) Age(now time.Time) time.Duration {
	return now.Sub(o.PlacedAt)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus distinguishes confirmed fills from failed executions.
type TradeStatus string

const (
	TradeConfirmed TradeStatus = "confirmed"
	TradeFailed    TradeStatus = "failed"
)

// TradeRecord is an append-only journal entry for one executed Action.
type TradeRecord struct {
	ID            string          `json:"id"`
	ActionID      string          `json:"action_id"`
	OpportunityID string          `json:"opportunity_id"`
	Timestamp     time.Time       `json:"timestamp"`
	VenueID       string          `json:"venue_id"`
	Bucket        string          `json:"bucket"`
	Kind          ActionKind      `json:"kind"`
	Side          OrderSide       `json:"side"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	Fees          decimal.Decimal `json:"fees"`
	Status        TradeStatus     `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	TxRef         string          `json:"tx_ref,omitempty"`
}

// SignedSize is the position delta of a confirmed record; failed records
// contribute nothing.
func (t TradeRecord) SignedSize() decimal.Decimal {
	if t.Status != TradeConfirmed {
		return decimal.Zero
	}
	return t.Size.Mul(t.Side.Sign())
}

// Notional is size times price.
func (t TradeRecord) Notional() decimal.Decimal {
	return t.Size.Mul(t.Price)
}

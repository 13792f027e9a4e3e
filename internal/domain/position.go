package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the bot's holding in one bucket (a venue or a logical asset
// bucket). Size is the signed sum of confirmed TradeRecords for the bucket.
type Position struct {
	Bucket                  string          `json:"bucket"`
	VenueID                 string          `json:"venue_id"`
	Size                    decimal.Decimal `json:"size"`
	AverageEntryPrice       decimal.Decimal `json:"average_entry_price"`
	TargetAllocationPercent decimal.Decimal `json:"target_allocation_percent"`
	RealizedPnL             decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL           decimal.Decimal `json:"unrealized_pnl"`
	MarkPrice               decimal.Decimal `json:"mark_price"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// Value is the position marked at the last mark price.
func (p Position) Value() decimal.Decimal {
	return p.Size.Mul(p.MarkPrice)
}

// TotalPnL is realized plus unrealized PnL.
func (p Position) TotalPnL() decimal.Decimal {
	return p.RealizedPnL.Add(p.UnrealizedPnL)
}

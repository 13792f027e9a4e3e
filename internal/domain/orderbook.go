package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+quantity entry in an order book.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// VaultBalances are the reserves held by an AMM-style pool.
type VaultBalances struct {
	Base     decimal.Decimal `json:"base"`
	Quote    decimal.Decimal `json:"quote"`
	FeeToken decimal.Decimal `json:"fee_token"`
}

// TradeParams are the venue's trading terms.
type TradeParams struct {
	MakerFee     decimal.Decimal `json:"maker_fee"`
	TakerFee     decimal.Decimal `json:"taker_fee"`
	MinOrderSize decimal.Decimal `json:"min_order_size"`
}

// MarketSnapshot is one venue's book at one tick. Levels are best-first.
// A snapshot is never mutated after construction; use Clone before handing
// one to code that outlives the tick.
type MarketSnapshot struct {
	VenueID       string          `json:"venue_id"`
	Pair          string          `json:"pair"`
	Timestamp     time.Time       `json:"timestamp"`
	MidPrice      decimal.Decimal `json:"mid_price"`
	BestBid       PriceLevel      `json:"best_bid"`
	BestAsk       PriceLevel      `json:"best_ask"`
	Bids          []PriceLevel    `json:"bids"`
	Asks          []PriceLevel    `json:"asks"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
	Vault         *VaultBalances  `json:"vault,omitempty"`
	Params        *TradeParams    `json:"params,omitempty"`
	Stale         bool            `json:"stale"`
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s MarketSnapshot) Clone() MarketSnapshot {
	out := s
	out.Bids = append([]PriceLevel(nil), s.Bids...)
	out.Asks = append([]PriceLevel(nil), s.Asks...)
	if s.Vault != nil {
		v := *s.Vault
		out.Vault = &v
	}
	if s.Params != nil {
		p := *s.Params
		out.Params = &p
	}
	return out
}

// Levels returns the side of the book a taker of the given side consumes:
// asks for a buy, bids for a sell.
func (s MarketSnapshot) Levels(side OrderSide) []PriceLevel {
	if side == OrderSideBuy {
		return s.Asks
	}
	return s.Bids
}

// VenueStats is the answer to a venue statistics query.
type VenueStats struct {
	VenueID string         `json:"venue_id"`
	Params  TradeParams    `json:"params"`
	Vault   *VaultBalances `json:"vault,omitempty"`
}

// Conversion is a venue's estimate for swapping AmountIn.
type Conversion struct {
	AmountIn  decimal.Decimal `json:"amount_in"`
	AmountOut decimal.Decimal `json:"amount_out"`
	Rate      decimal.Decimal `json:"rate"`
}

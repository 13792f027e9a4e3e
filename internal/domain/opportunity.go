package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityKind names an Opportunity variant.
type OpportunityKind string

const (
	KindArbitrage       OpportunityKind = "arbitrage"
	KindRebalance       OpportunityKind = "rebalance"
	KindThresholdBreach OpportunityKind = "threshold_breach"
	KindLiquidation     OpportunityKind = "liquidation_candidate"
	KindQuoteRefresh    OpportunityKind = "quote_refresh"
)

// Opportunity is a detected, not yet validated candidate for action. The set
// of implementations is closed: Arbitrage, Rebalance, ThresholdBreach,
// LiquidationCandidate and QuoteRefresh.
type Opportunity interface {
	ID() string
	Kind() OpportunityKind
	Venue() string
	// NetBenefit is the estimated profit after costs. ok is false for
	// variants that are not profit-gated.
	NetBenefit() (benefit decimal.Decimal, ok bool)
	Summary() string
	isOpportunity()
}

// Meta carries the identity shared by all Opportunity variants.
type Meta struct {
	OpportunityID string    `json:"id"`
	DetectedAt    time.Time `json:"detected_at"`
}

func (m Meta) ID() string { return m.OpportunityID }

// ArbDirection says which configured venue is the buy leg.
type ArbDirection string

const (
	BuyASellB ArbDirection = "buy_a_sell_b"
	BuyBSellA ArbDirection = "buy_b_sell_a"
)

// Arbitrage is a cross-venue price discrepancy on the same pair.
type Arbitrage struct {
	Meta
	Pair             string          `json:"pair"`
	VenueA           string          `json:"venue_a"`
	VenueB           string          `json:"venue_b"`
	Direction        ArbDirection    `json:"direction"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	SizeEstimate     decimal.Decimal `json:"size_estimate"`
	Notional         decimal.Decimal `json:"notional"`
	GrossEdgePercent decimal.Decimal `json:"gross_edge_percent"`
	GrossProfit      decimal.Decimal `json:"gross_profit"`
	Cost             decimal.Decimal `json:"cost"`
	NetProfit        decimal.Decimal `json:"net_profit"`
}

// BuyVenue is the cheaper venue.
func (a Arbitrage) BuyVenue() string {
	if a.Direction == BuyASellB {
		return a.VenueA
	}
	return a.VenueB
}

// SellVenue is the dearer venue.
func (a Arbitrage) SellVenue() string {
	if a.Direction == BuyASellB {
		return a.VenueB
	}
	return a.VenueA
}

func (a Arbitrage) Kind() OpportunityKind               { return KindArbitrage }
func (a Arbitrage) Venue() string                       { return a.BuyVenue() }
func (a Arbitrage) NetBenefit() (decimal.Decimal, bool) { return a.NetProfit, true }
func (Arbitrage) isOpportunity()                        {}
func (a Arbitrage) Summary() string {
	return fmt.Sprintf("buy %s on %s @ %s, sell on %s @ %s, edge %s%%, net %s",
		a.SizeEstimate.StringFixed(4), a.BuyVenue(), a.BuyPrice.String(), a.SellVenue(),
		a.SellPrice.String(), a.GrossEdgePercent.Mul(decimal.NewFromInt(100)).StringFixed(3),
		a.NetProfit.StringFixed(2))
}

// Rebalance moves a bucket back to its target allocation.
type Rebalance struct {
	Meta
	Bucket    string          `json:"bucket"`
	VenueID   string          `json:"venue_id"`
	Target    decimal.Decimal `json:"target"`
	Current   decimal.Decimal `json:"current"`
	Direction OrderSide       `json:"direction"`
	// Amount is the quote-currency value to buy or sell.
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

func (r Rebalance) Kind() OpportunityKind               { return KindRebalance }
func (r Rebalance) Venue() string                       { return r.VenueID }
func (r Rebalance) NetBenefit() (decimal.Decimal, bool) { return decimal.Zero, false }
func (Rebalance) isOpportunity()                        {}
func (r Rebalance) Summary() string {
	return fmt.Sprintf("%s %s of %s (current %s, target %s)",
		r.Direction, r.Amount.StringFixed(2), r.Bucket, r.Current.StringFixed(2), r.Target.StringFixed(2))
}

// Metric names a monitored quantity.
type Metric string

const (
	MetricPrice     Metric = "price"
	MetricSpread    Metric = "spread"
	MetricDepth     Metric = "depth"
	MetricHealth    Metric = "health_ratio"
	MetricVenueDown Metric = "venue_unavailable"
)

// ThresholdBreach is a tick-over-tick metric change past a breakpoint.
type ThresholdBreach struct {
	Meta
	VenueID       string          `json:"venue_id"`
	Metric        Metric          `json:"metric"`
	PreviousValue decimal.Decimal `json:"previous_value"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	Change        decimal.Decimal `json:"change"`
	Severity      Severity        `json:"severity"`
}

func (t ThresholdBreach) Kind() OpportunityKind               { return KindThresholdBreach }
func (t ThresholdBreach) Venue() string                       { return t.VenueID }
func (t ThresholdBreach) NetBenefit() (decimal.Decimal, bool) { return decimal.Zero, false }
func (ThresholdBreach) isOpportunity()                        {}
func (t ThresholdBreach) Summary() string {
	return fmt.Sprintf("%s on %s moved %s%% (%s -> %s)", t.Metric, t.VenueID,
		t.Change.Mul(decimal.NewFromInt(100)).StringFixed(2), t.PreviousValue.String(), t.CurrentValue.String())
}

// LiquidationCandidate is an account close to or past its liquidation point.
type LiquidationCandidate struct {
	Meta
	VenueID        string          `json:"venue_id"`
	Account        string          `json:"account"`
	HealthRatio    decimal.Decimal `json:"health_ratio"`
	PreviousHealth decimal.Decimal `json:"previous_health"`
	EstimatedBonus decimal.Decimal `json:"estimated_bonus"`
	Severity       Severity        `json:"severity"`
}

func (l LiquidationCandidate) Kind() OpportunityKind               { return KindLiquidation }
func (l LiquidationCandidate) Venue() string                       { return l.VenueID }
func (l LiquidationCandidate) NetBenefit() (decimal.Decimal, bool) { return l.EstimatedBonus, false }
func (LiquidationCandidate) isOpportunity()                        {}
func (l LiquidationCandidate) Summary() string {
	return fmt.Sprintf("account %s on %s health %s, est. bonus %s",
		l.Account, l.VenueID, l.HealthRatio.StringFixed(4), l.EstimatedBonus.StringFixed(2))
}

// QuoteRefresh is a market-making requote on one venue: stale orders to
// cancel followed by fresh quotes.
type QuoteRefresh struct {
	Meta
	VenueID       string          `json:"venue_id"`
	Mid           decimal.Decimal `json:"mid"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Size          decimal.Decimal `json:"size"`
	Cancel        []string        `json:"cancel"`
}

func (q QuoteRefresh) Kind() OpportunityKind               { return KindQuoteRefresh }
func (q QuoteRefresh) Venue() string                       { return q.VenueID }
func (q QuoteRefresh) NetBenefit() (decimal.Decimal, bool) { return decimal.Zero, false }
func (QuoteRefresh) isOpportunity()                        {}
func (q QuoteRefresh) Summary() string {
	return fmt.Sprintf("quote %s/%s x %s on %s, cancel %d", q.Bid.String(), q.Ask.String(),
		q.Size.String(), q.VenueID, len(q.Cancel))
}

// Proposal is a detector's output: one Opportunity and the ordered Actions
// it implies. Score ranks proposals within a tick, higher first.
type Proposal struct {
	Opportunity Opportunity
	Actions     []Action
	Score       decimal.Decimal
}

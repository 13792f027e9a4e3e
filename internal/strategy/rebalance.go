package strategy

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// Bucket is one rebalanced allocation. Percentages are fractions.
type Bucket struct {
	Name             string
	VenueID          string
	TargetPercent    decimal.Decimal
	ThresholdPercent decimal.Decimal
	// Kind is ActionMarket or ActionSwap.
	Kind domain.ActionKind
}

// RebalanceConfig configures the Rebalance planner.
type RebalanceConfig struct {
	Buckets              []Bucket
	SlippageGuardPercent decimal.Decimal
}

// Rebalance plans trades that bring each bucket back to its target share of
// the portfolio. All buckets in a tick are planned against one portfolio
// total, and each trade closes its deviation in full.
type Rebalance struct {
	cfg    RebalanceConfig
	logger *slog.Logger
}

// NewRebalance creates a Rebalance planner.
func NewRebalance(cfg RebalanceConfig, logger *slog.Logger) *Rebalance {
	return &Rebalance{cfg: cfg, logger: logger.With(slog.String("strategy", "rebalance"))}
}

// Name returns the detector identifier.
func (r *Rebalance) Name() string { return "rebalance" }

// Detect returns one proposal per bucket whose deviation ratio exceeds its
// threshold.
func (r *Rebalance) Detect(ctx context.Context, tick Tick, st state.Reader) ([]domain.Proposal, error) {
	total := st.TotalValue()
	if !total.IsPositive() {
		return nil, nil
	}

	var proposals []domain.Proposal
	for _, b := range r.cfg.Buckets {
		snap, ok := tick.Snapshots[b.VenueID]
		if !ok || snap.Stale || !snap.MidPrice.IsPositive() {
			r.logger.DebugContext(ctx, "rebalance: no fresh price",
				slog.String("bucket", b.Name),
				slog.String("venue", b.VenueID),
			)
			continue
		}
		pos, _ := st.Position(b.Name)
		current := pos.Size.Mul(snap.MidPrice)
		target := analytics.TargetValue(b.TargetPercent, total)
		deviation := analytics.AllocationDeviation(current, b.TargetPercent, total)

		ratio, ok := analytics.DeviationRatio(deviation, target)
		if ok && !ratio.GreaterThan(b.ThresholdPercent) {
			continue
		}
		if deviation.IsZero() {
			continue
		}
		proposals = append(proposals, r.propose(b, snap.MidPrice, current, target, deviation, tick))
	}
	return proposals, nil
}

func (r *Rebalance) propose(b Bucket, price, current, target, deviation decimal.Decimal, tick Tick) domain.Proposal {
	side := domain.OrderSideBuy
	if deviation.IsPositive() {
		side = domain.OrderSideSell
	}
	amount := deviation.Abs()
	size := amount.Div(price)

	opp := domain.Rebalance{
		Meta:      newMeta(tick.Now),
		Bucket:    b.Name,
		VenueID:   b.VenueID,
		Target:    target,
		Current:   current,
		Direction: side,
		Amount:    amount,
		Price:     price,
	}

	kind := b.Kind
	if kind == "" {
		kind = domain.ActionMarket
	}
	one := decimal.NewFromInt(1)
	a := newAction(kind, b.VenueID, opp, tick.Now)
	a.Bucket = b.Name
	a.Side = side
	a.Size = size
	switch {
	case kind == domain.ActionSwap && side == domain.OrderSideBuy:
		// Minimum base received for the quote spent.
		a.LimitPrice = size.Mul(one.Sub(r.cfg.SlippageGuardPercent))
	case kind == domain.ActionSwap:
		// Minimum quote received for the base sold.
		a.LimitPrice = amount.Mul(one.Sub(r.cfg.SlippageGuardPercent))
	case side == domain.OrderSideBuy:
		a.LimitPrice = price.Mul(one.Add(r.cfg.SlippageGuardPercent))
	default:
		a.LimitPrice = price.Mul(one.Sub(r.cfg.SlippageGuardPercent))
	}

	return domain.Proposal{Opportunity: opp, Actions: []domain.Action{a}, Score: decimal.Zero}
}

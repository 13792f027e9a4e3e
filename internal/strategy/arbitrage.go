package strategy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

const defaultTopK = 3

// ArbitrageConfig configures the Arbitrage detector. Percentages are
// fractions and amounts are in quote currency.
type ArbitrageConfig struct {
	MinEdgePercent decimal.Decimal
	MinProfit      decimal.Decimal
	MaxNotional    decimal.Decimal
	FeePercent     decimal.Decimal
	GasCost        decimal.Decimal
	TopK           int
	// SlippageGuardPercent widens each leg's worst acceptable price.
	SlippageGuardPercent decimal.Decimal
}

// Arbitrage compares mid prices across every unordered pair of venues
// quoting the same pair and proposes a buy on the cheaper venue and a sell
// on the dearer one.
type Arbitrage struct {
	cfg    ArbitrageConfig
	logger *slog.Logger
}

// NewArbitrage creates an Arbitrage detector.
func NewArbitrage(cfg ArbitrageConfig, logger *slog.Logger) *Arbitrage {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &Arbitrage{cfg: cfg, logger: logger.With(slog.String("strategy", "arbitrage"))}
}

// Name returns the detector identifier.
func (a *Arbitrage) Name() string { return "arbitrage" }

// Detect returns at most TopK proposals ranked by net profit.
func (a *Arbitrage) Detect(ctx context.Context, tick Tick, _ state.Reader) ([]domain.Proposal, error) {
	venues := make([]string, 0, len(tick.Snapshots))
	for id := range tick.Snapshots {
		venues = append(venues, id)
	}
	sort.Strings(venues)

	var found []domain.Arbitrage
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			sa, sb := tick.Snapshots[venues[i]], tick.Snapshots[venues[j]]
			if sa.Pair != sb.Pair || sa.Stale || sb.Stale {
				continue
			}
			if opp, ok := a.evaluate(sa, sb, tick); ok {
				found = append(found, opp)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].NetProfit.GreaterThan(found[j].NetProfit)
	})
	if len(found) > a.cfg.TopK {
		a.logger.DebugContext(ctx, "arbitrage: truncating to top-k",
			slog.Int("found", len(found)),
			slog.Int("top_k", a.cfg.TopK),
		)
		found = found[:a.cfg.TopK]
	}

	proposals := make([]domain.Proposal, 0, len(found))
	for _, opp := range found {
		proposals = append(proposals, a.propose(opp, tick))
	}
	return proposals, nil
}

func (a *Arbitrage) evaluate(sa, sb domain.MarketSnapshot, tick Tick) (domain.Arbitrage, bool) {
	edge := analytics.CrossVenueEdge(sa.MidPrice, sb.MidPrice)
	if !edge.GreaterThan(a.cfg.MinEdgePercent) {
		return domain.Arbitrage{}, false
	}

	dir, buy, sell := domain.BuyASellB, sa, sb
	if !analytics.BuyA(sa.MidPrice, sb.MidPrice) {
		dir, buy, sell = domain.BuyBSellA, sb, sa
	}

	// Liquidity in quote currency on each leg: asks we can lift on the buy
	// venue, bids we can hit on the sell venue.
	buyLiq := analytics.CumulativeNotional(buy.Asks, len(buy.Asks))
	sellLiq := analytics.CumulativeNotional(sell.Bids, len(sell.Bids))
	if !buyLiq.IsPositive() || !sellLiq.IsPositive() {
		return domain.Arbitrage{}, false
	}
	notional := decimal.Min(buyLiq, sellLiq)
	if a.cfg.MaxNotional.IsPositive() {
		notional = decimal.Min(notional, a.cfg.MaxNotional)
	}

	gross := notional.Mul(edge)
	cost := notional.Mul(a.feePercent(buy, sell)).Add(a.cfg.GasCost)
	net := gross.Sub(cost)
	if !net.GreaterThan(a.cfg.MinProfit) {
		return domain.Arbitrage{}, false
	}

	return domain.Arbitrage{
		Meta:             newMeta(tick.Now),
		Pair:             sa.Pair,
		VenueA:           sa.VenueID,
		VenueB:           sb.VenueID,
		Direction:        dir,
		BuyPrice:         buy.MidPrice,
		SellPrice:        sell.MidPrice,
		SizeEstimate:     notional.Div(buy.MidPrice),
		Notional:         notional,
		GrossEdgePercent: edge,
		GrossProfit:      gross,
		Cost:             cost,
		NetProfit:        net,
	}, true
}

// feePercent is the round-trip fee fraction: the two venues' taker fees
// when both report trading terms, otherwise the configured estimate.
func (a *Arbitrage) feePercent(buy, sell domain.MarketSnapshot) decimal.Decimal {
	if buy.Params == nil || sell.Params == nil {
		return a.cfg.FeePercent
	}
	return buy.Params.TakerFee.Add(sell.Params.TakerFee)
}

// propose builds the two legs. Both carry the same opportunity so the gate
// can drop them together.
func (a *Arbitrage) propose(opp domain.Arbitrage, tick Tick) domain.Proposal {
	one := decimal.NewFromInt(1)

	buy := newAction(domain.ActionMarket, opp.BuyVenue(), opp, tick.Now)
	buy.Side = domain.OrderSideBuy
	buy.Size = opp.SizeEstimate
	buy.LimitPrice = opp.BuyPrice.Mul(one.Add(a.cfg.SlippageGuardPercent))

	sell := newAction(domain.ActionMarket, opp.SellVenue(), opp, tick.Now)
	sell.Side = domain.OrderSideSell
	sell.Size = opp.SizeEstimate
	sell.LimitPrice = opp.SellPrice.Mul(one.Sub(a.cfg.SlippageGuardPercent))

	return domain.Proposal{
		Opportunity: opp,
		Actions:     []domain.Action{buy, sell},
		Score:       opp.NetProfit,
	}
}

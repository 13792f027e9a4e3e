package strategy

import (
	"context"
	"testing"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/risk"
	"github.com/alanyoungcy/venuebot/internal/state"
)

func scenarioArbConfig() ArbitrageConfig {
	return ArbitrageConfig{
		MinEdgePercent: dec("0.002"),
		MinProfit:      dec("5"),
		MaxNotional:    dec("10000"),
		FeePercent:     dec("0.0005"),
		TopK:           3,
	}
}

func TestArbitrageScenarioEmittedAndApproved(t *testing.T) {
	tick := tickOf(
		snapAround(t, "a", "X/USD", "1.50", "10000"),
		snapAround(t, "b", "X/USD", "1.52", "10000"),
	)
	st := state.New(state.Limits{}, dec("20000"))

	props, err := NewArbitrage(scenarioArbConfig(), logger).Detect(context.Background(), tick, st)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("proposals: got=%d want=1", len(props))
	}
	opp := props[0].Opportunity.(domain.Arbitrage)

	if opp.BuyVenue() != "a" || opp.SellVenue() != "b" {
		t.Fatalf("legs: buy=%s sell=%s", opp.BuyVenue(), opp.SellVenue())
	}
	if opp.GrossEdgePercent.LessThan(dec("0.0131")) || opp.GrossEdgePercent.GreaterThan(dec("0.0134")) {
		t.Fatalf("edge: got=%s want≈0.0132", opp.GrossEdgePercent)
	}
	if !opp.Notional.Equal(dec("10000")) {
		t.Fatalf("notional: got=%s want=10000", opp.Notional)
	}
	if opp.NetProfit.LessThan(dec("125")) || opp.NetProfit.GreaterThan(dec("130")) {
		t.Fatalf("net: got=%s want≈127", opp.NetProfit)
	}

	acts := props[0].Actions
	if len(acts) != 2 || acts[0].Side != domain.OrderSideBuy || acts[1].Side != domain.OrderSideSell {
		t.Fatalf("actions: %+v", acts)
	}
	for _, a := range acts {
		if a.OpportunityID() != opp.ID() {
			t.Fatal("every action must reference the opportunity")
		}
	}

	gate := risk.NewGate(risk.Config{
		MaxPositionSize:    dec("10000"),
		MinProfit:          dec("5"),
		StopLoss:           dec("1000"),
		MinFillRatio:       dec("1"),
		MaxSlippagePercent: dec("0.01"),
	}, logger)
	for _, a := range acts {
		if v, ok := gate.Evaluate(a, st, tick.Snapshots).(domain.Rejected); ok {
			t.Fatalf("leg %s rejected: %s", a.VenueID, v.Error())
		}
	}
}

func TestArbitrageNoSelfArbOnEqualPrices(t *testing.T) {
	tick := tickOf(
		snapAround(t, "a", "X/USD", "1.50", "10000"),
		snapAround(t, "b", "X/USD", "1.50", "10000"),
		snapAround(t, "c", "X/USD", "1.50", "5000"),
	)
	cfg := scenarioArbConfig()
	cfg.MinEdgePercent = dec("0")
	cfg.MinProfit = dec("-1000")

	props, _ := NewArbitrage(cfg, logger).Detect(context.Background(), tick, state.New(state.Limits{}, dec("0")))
	if len(props) != 0 {
		t.Fatalf("equal prices must yield no opportunities, got %d", len(props))
	}
}

func TestArbitrageSkipsZeroLiquidityAndOtherPairs(t *testing.T) {
	empty := snapAround(t, "b", "X/USD", "1.60", "10000")
	empty.Bids = nil

	tick := tickOf(
		snapAround(t, "a", "X/USD", "1.50", "10000"),
		empty,
		snapAround(t, "c", "Y/USD", "1.70", "10000"),
	)
	props, _ := NewArbitrage(scenarioArbConfig(), logger).Detect(context.Background(), tick, state.New(state.Limits{}, dec("0")))
	if len(props) != 0 {
		t.Fatalf("got %d proposals", len(props))
	}
}

func TestArbitrageTopKRankedByNetProfit(t *testing.T) {
	tick := tickOf(
		snapAround(t, "a", "X/USD", "1.50", "10000"),
		snapAround(t, "b", "X/USD", "1.52", "10000"),
		snapAround(t, "c", "X/USD", "1.55", "10000"),
		snapAround(t, "d", "X/USD", "1.53", "10000"),
	)
	cfg := scenarioArbConfig()
	cfg.TopK = 2

	props, _ := NewArbitrage(cfg, logger).Detect(context.Background(), tick, state.New(state.Limits{}, dec("0")))
	if len(props) != 2 {
		t.Fatalf("top-k: got=%d want=2", len(props))
	}
	first := props[0].Opportunity.(domain.Arbitrage)
	if first.BuyVenue() != "a" || first.SellVenue() != "c" {
		t.Fatalf("best pair: buy=%s sell=%s", first.BuyVenue(), first.SellVenue())
	}
	if props[1].Score.GreaterThan(props[0].Score) {
		t.Fatal("proposals must be ranked by net profit")
	}
}

func TestArbitrageCostsVenueTakerFees(t *testing.T) {
	withFee := func(snap domain.MarketSnapshot, fee string) domain.MarketSnapshot {
		snap.Params = &domain.TradeParams{TakerFee: dec(fee)}
		return snap
	}
	a := withFee(snapAround(t, "a", "X/USD", "1.50", "10000"), "0.003")
	b := withFee(snapAround(t, "b", "X/USD", "1.52", "10000"), "0.003")

	props, err := NewArbitrage(scenarioArbConfig(), logger).Detect(context.Background(), tickOf(a, b), nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("proposals: got=%d want=1", len(props))
	}
	opp := props[0].Opportunity.(domain.Arbitrage)
	// Round trip 0.6% of 10000 instead of the configured 0.05%.
	if !opp.Cost.Equal(dec("60")) {
		t.Fatalf("cost: got=%s want=60", opp.Cost)
	}

	// One leg without terms falls back to the configured estimate.
	b.Params = nil
	props, err = NewArbitrage(scenarioArbConfig(), logger).Detect(context.Background(), tickOf(a, b), nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if opp := props[0].Opportunity.(domain.Arbitrage); !opp.Cost.Equal(dec("5")) {
		t.Fatalf("fallback cost: got=%s want=5", opp.Cost)
	}
}

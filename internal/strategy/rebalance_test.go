package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// portfolio seeds cash plus positions marked at their venue's mid.
func portfolio(cash string, holdings map[string]string, tick Tick) *state.Store {
	st := state.New(state.Limits{}, dec(cash))
	marks := map[string]decimal.Decimal{}
	for bucket, value := range holdings {
		mid := tick.Snapshots[bucket].MidPrice
		st.SeedPosition(bucket, bucket, dec(value).Div(mid), mid, t0)
		marks[bucket] = mid
	}
	st.MarkToMarket(marks, t0)
	return st
}

func TestRebalanceScenarioBuysExactDeviation(t *testing.T) {
	tick := tickOf(snapAround(t, "eth", "ETH/USD", "2", "100000"))
	st := portfolio("7000", map[string]string{"eth": "3000"}, tick)

	r := NewRebalance(RebalanceConfig{Buckets: []Bucket{{
		Name: "eth", VenueID: "eth", TargetPercent: dec("0.40"), ThresholdPercent: dec("0.05"),
	}}}, logger)

	props, err := r.Detect(context.Background(), tick, st)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(props) != 1 {
		t.Fatalf("proposals: got=%d want=1", len(props))
	}
	opp := props[0].Opportunity.(domain.Rebalance)
	if opp.Direction != domain.OrderSideBuy || !opp.Amount.Equal(dec("1000")) {
		t.Fatalf("got %s %s, want buy 1000", opp.Direction, opp.Amount)
	}
	if !opp.Current.Add(opp.Amount).Equal(opp.Target) || !opp.Target.Equal(dec("4000")) {
		t.Fatalf("trade must land exactly on target: current=%s amount=%s target=%s", opp.Current, opp.Amount, opp.Target)
	}
	a := props[0].Actions[0]
	if a.Bucket != "eth" || !a.Size.Equal(dec("500")) {
		t.Fatalf("action: bucket=%s size=%s", a.Bucket, a.Size)
	}
}

func TestRebalanceIdempotentAtTarget(t *testing.T) {
	tick := tickOf(
		snapAround(t, "a", "A/USD", "2", "100000"),
		snapAround(t, "b", "B/USD", "4", "100000"),
	)
	st := portfolio("2000", map[string]string{"a": "4000", "b": "4000"}, tick)
	r := NewRebalance(RebalanceConfig{Buckets: []Bucket{
		{Name: "a", VenueID: "a", TargetPercent: dec("0.4"), ThresholdPercent: dec("0.05")},
		{Name: "b", VenueID: "b", TargetPercent: dec("0.4"), ThresholdPercent: dec("0.05")},
	}}, logger)

	for i := 0; i < 2; i++ {
		props, err := r.Detect(context.Background(), tick, st)
		if err != nil || len(props) != 0 {
			t.Fatalf("run %d: proposals=%d err=%v", i, len(props), err)
		}
	}
}

func TestRebalanceUsesOneTotalForAllBuckets(t *testing.T) {
	tick := tickOf(
		snapAround(t, "a", "A/USD", "1", "100000"),
		snapAround(t, "b", "B/USD", "1", "100000"),
	)
	// Total 10000: a holds 6000 (target 40%), b holds 1000 (target 40%).
	st := portfolio("3000", map[string]string{"a": "6000", "b": "1000"}, tick)
	r := NewRebalance(RebalanceConfig{
		Buckets: []Bucket{
			{Name: "a", VenueID: "a", TargetPercent: dec("0.4"), ThresholdPercent: dec("0.05")},
			{Name: "b", VenueID: "b", TargetPercent: dec("0.4"), ThresholdPercent: dec("0.05"), Kind: domain.ActionSwap},
		},
		SlippageGuardPercent: dec("0.01"),
	}, logger)

	props, _ := r.Detect(context.Background(), tick, st)
	if len(props) != 2 {
		t.Fatalf("proposals: got=%d want=2", len(props))
	}
	sell := props[0].Opportunity.(domain.Rebalance)
	buy := props[1].Opportunity.(domain.Rebalance)
	if sell.Direction != domain.OrderSideSell || !sell.Amount.Equal(dec("2000")) {
		t.Fatalf("a: %s %s", sell.Direction, sell.Amount)
	}
	if buy.Direction != domain.OrderSideBuy || !buy.Amount.Equal(dec("3000")) {
		t.Fatalf("b: %s %s", buy.Direction, buy.Amount)
	}
	if !sell.Target.Equal(buy.Target) {
		t.Fatal("buckets must share the portfolio total")
	}
	swap := props[1].Actions[0]
	if swap.Kind != domain.ActionSwap || !swap.LimitPrice.Equal(dec("2970")) {
		t.Fatalf("swap min out: kind=%s got=%s want=2970", swap.Kind, swap.LimitPrice)
	}
}

func TestRebalanceWithinThreshold(t *testing.T) {
	tick := tickOf(snapAround(t, "a", "A/USD", "1", "100000"))
	// 3900 of 10000 against a 40% target: ratio 2.5% < 5%.
	st := portfolio("6100", map[string]string{"a": "3900"}, tick)
	r := NewRebalance(RebalanceConfig{Buckets: []Bucket{
		{Name: "a", VenueID: "a", TargetPercent: dec("0.4"), ThresholdPercent: dec("0.05")},
	}}, logger)
	if props, _ := r.Detect(context.Background(), tick, st); len(props) != 0 {
		t.Fatalf("got %d proposals", len(props))
	}
}

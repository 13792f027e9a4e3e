package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lvl(p, q string) domain.PriceLevel { return domain.PriceLevel{Price: dec(p), Quantity: dec(q)} }

func newPaper(t *testing.T) *Venue {
	t.Helper()
	snap, err := analytics.BuildSnapshot("alpha", "ETH/USD", time.Now(),
		[]domain.PriceLevel{lvl("99", "1"), lvl("98", "2")},
		[]domain.PriceLevel{lvl("101", "1"), lvl("102", "2")},
	)
	if err != nil {
		t.Fatal(err)
	}
	v := New(nil, dec("0.001"), 10)
	v.SetBook(snap)
	return v
}

func TestMarketWalksBook(t *testing.T) {
	v := newPaper(t)
	out, err := v.Submit(context.Background(), domain.Action{
		ID: "a1", Kind: domain.ActionMarket, VenueID: "alpha",
		Side: domain.OrderSideBuy, Size: dec("2"), LimitPrice: dec("102"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tr := out.(domain.Filled).Trade
	if !tr.Price.Equal(dec("101.5")) {
		t.Fatalf("avg = %s, want 101.5", tr.Price)
	}
	if !tr.Fees.Equal(dec("0.203")) {
		t.Fatalf("fees = %s, want 0.203", tr.Fees)
	}
}

func TestMarketRejections(t *testing.T) {
	v := newPaper(t)
	ctx := context.Background()

	_, err := v.Submit(ctx, domain.Action{ID: "a", Kind: domain.ActionMarket, VenueID: "alpha",
		Side: domain.OrderSideSell, Size: dec("10")})
	if !errors.Is(err, domain.ErrInsufficientLiquidity) || !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("deep sell err = %v", err)
	}

	_, err = v.Submit(ctx, domain.Action{ID: "b", Kind: domain.ActionMarket, VenueID: "alpha",
		Side: domain.OrderSideBuy, Size: dec("2"), LimitPrice: dec("101")})
	if !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("limit breach err = %v", err)
	}
}

func TestSwapMinimumOutput(t *testing.T) {
	v := newPaper(t)
	ctx := context.Background()

	// Selling 1 at 99 yields 98.901 after the fee.
	_, err := v.Submit(ctx, domain.Action{ID: "s1", Kind: domain.ActionSwap, VenueID: "alpha",
		Side: domain.OrderSideSell, Size: dec("1"), LimitPrice: dec("98.9")})
	if err != nil {
		t.Fatalf("swap within minimum: %v", err)
	}
	_, err = v.Submit(ctx, domain.Action{ID: "s2", Kind: domain.ActionSwap, VenueID: "alpha",
		Side: domain.OrderSideSell, Size: dec("1"), LimitPrice: dec("99")})
	if !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("swap below minimum err = %v", err)
	}
}

func TestLimitRestsUntilCancelled(t *testing.T) {
	v := newPaper(t)
	ctx := context.Background()

	out, err := v.Submit(ctx, domain.Action{ID: "q", Kind: domain.ActionLimit, VenueID: "alpha",
		Side: domain.OrderSideBuy, Size: dec("1"), LimitPrice: dec("98.5")})
	if err != nil {
		t.Fatal(err)
	}
	order := out.(domain.Resting).Order
	if len(v.Resting("alpha")) != 1 {
		t.Fatalf("resting = %d", len(v.Resting("alpha")))
	}

	out, err = v.Submit(ctx, domain.Action{ID: "c", Kind: domain.ActionCancel, VenueID: "alpha", OrderID: order.ID})
	if err != nil {
		t.Fatal(err)
	}
	if c := out.(domain.Cancelled); c.OrderID != order.ID {
		t.Fatalf("cancelled %s", c.OrderID)
	}
	if len(v.Resting("alpha")) != 0 {
		t.Fatal("order still resting")
	}
	if _, err := v.Submit(ctx, domain.Action{ID: "c2", Kind: domain.ActionCancel, VenueID: "alpha", OrderID: order.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second cancel err = %v", err)
	}
}

func TestEstimateConversion(t *testing.T) {
	v := newPaper(t)
	conv, err := v.EstimateConversion(context.Background(), "alpha", dec("202"), domain.OrderSideBuy)
	if err != nil {
		t.Fatal(err)
	}
	// 101 buys 1 at the first level, the remaining 101 buys 101/102.
	want := dec("1").Add(dec("101").Div(dec("102"))).Mul(dec("0.999"))
	if !conv.AmountOut.Equal(want) {
		t.Fatalf("out = %s, want %s", conv.AmountOut, want)
	}
	if _, err := v.EstimateConversion(context.Background(), "missing", dec("1"), domain.OrderSideBuy); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing book err = %v", err)
	}
}

// healthUpstream is a book-less upstream that reports one account.
type healthUpstream struct {
	domain.Venue
}

func (healthUpstream) AccountHealth(ctx context.Context, venueID string) ([]domain.AccountHealth, error) {
	return []domain.AccountHealth{{Account: "acct-1", HealthRatio: dec("1.05"), DebtValue: dec("500")}}, nil
}

func TestAccountHealthFromUpstream(t *testing.T) {
	var hs domain.HealthSource = New(healthUpstream{}, decimal.Zero, 10)
	accounts, err := hs.AccountHealth(context.Background(), "lend")
	if err != nil {
		t.Fatalf("AccountHealth: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Account != "acct-1" || !accounts[0].HealthRatio.Equal(dec("1.05")) {
		t.Fatalf("accounts = %+v", accounts)
	}

	if _, err := newPaper(t).AccountHealth(context.Background(), "alpha"); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("no upstream err = %v", err)
	}
}

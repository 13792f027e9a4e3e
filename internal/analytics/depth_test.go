package analytics

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func levels(pairs ...string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{Price: dec(pairs[i]), Quantity: dec(pairs[i+1])})
	}
	return out
}

func TestDepthWeightedPrice(t *testing.T) {
	asks := levels("1.00", "10", "1.10", "10", "1.20", "5")

	cases := []struct {
		name         string
		target       string
		wantAchieved string
		wantAvg      string
	}{
		{"inside first level", "5", "5", "1"},
		{"exactly first level", "10", "10", "1"},
		{"two levels", "20", "20", "1.05"},
		{"partial third", "22.5", "22.5", "1.0666666666666667"},
		{"exhausted", "100", "25", "1.08"},
		{"zero target", "0", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			achieved, avg := DepthWeightedPrice(asks, dec(tc.target))
			if !achieved.Equal(dec(tc.wantAchieved)) {
				t.Fatalf("achieved: got=%s want=%s", achieved, tc.wantAchieved)
			}
			if !avg.Round(12).Equal(dec(tc.wantAvg).Round(12)) {
				t.Fatalf("avg: got=%s want=%s", avg, tc.wantAvg)
			}
		})
	}
}

func TestDepthWeightedPriceMonotonic(t *testing.T) {
	asks := levels("1.00", "3", "1.01", "7", "1.05", "2", "1.30", "11")
	bids := levels("0.99", "4", "0.95", "1", "0.90", "9", "0.50", "6")

	var prevAsk, prevBid decimal.Decimal
	for size := 1; size <= 40; size++ {
		target := decimal.NewFromInt(int64(size)).Div(decimal.NewFromInt(2))
		_, ask := DepthWeightedPrice(asks, target)
		_, bid := DepthWeightedPrice(bids, target)
		if size > 1 {
			if ask.LessThan(prevAsk) {
				t.Fatalf("ask price fell at size %s: %s < %s", target, ask, prevAsk)
			}
			if bid.GreaterThan(prevBid) {
				t.Fatalf("bid price rose at size %s: %s > %s", target, bid, prevBid)
			}
		}
		prevAsk, prevBid = ask, bid
	}
}

func TestFillPriceInsufficientLiquidity(t *testing.T) {
	_, err := FillPrice(levels("1.5", "10"), dec("11"))
	if !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	price, err := FillPrice(levels("1.5", "10"), dec("10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(dec("1.5")) {
		t.Fatalf("price: got=%s want=1.5", price)
	}
}

func TestCumulativeDepth(t *testing.T) {
	bids := levels("10", "1", "9", "2", "8", "3")
	if got := CumulativeDepth(bids, 2); !got.Equal(dec("3")) {
		t.Fatalf("depth(2): got=%s want=3", got)
	}
	if got := CumulativeDepth(bids, 0); !got.Equal(dec("6")) {
		t.Fatalf("depth(all): got=%s want=6", got)
	}
	if got := CumulativeDepth(bids, 99); !got.Equal(dec("6")) {
		t.Fatalf("depth(99): got=%s want=6", got)
	}
	if got := CumulativeNotional(bids, 2); !got.Equal(dec("28")) {
		t.Fatalf("notional(2): got=%s want=28", got)
	}
}

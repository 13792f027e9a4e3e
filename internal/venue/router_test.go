package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/venue/paper"
	"github.com/shopspring/decimal"
)

func TestRouterDispatchesByVenue(t *testing.T) {
	mk := func(id, bid, ask string) *paper.Venue {
		snap, err := analytics.BuildSnapshot(id, "ETH/USD", time.Now(),
			[]domain.PriceLevel{{Price: decimal.RequireFromString(bid), Quantity: decimal.NewFromInt(1)}},
			[]domain.PriceLevel{{Price: decimal.RequireFromString(ask), Quantity: decimal.NewFromInt(1)}},
		)
		if err != nil {
			t.Fatal(err)
		}
		p := paper.New(nil, decimal.Zero, 5)
		p.SetBook(snap)
		return p
	}

	r := NewRouter()
	if err := r.Register("a", mk("a", "99", "101")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("b", mk("b", "199", "201")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", mk("a", "1", "2")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate register err = %v", err)
	}

	ctx := context.Background()
	snap, err := r.OrderBook(ctx, "b", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.MidPrice.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("mid = %s", snap.MidPrice)
	}
	if _, err := r.OrderBook(ctx, "zzz", 5); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("unknown venue err = %v", err)
	}
	if _, err := r.AccountHealth(ctx, "a"); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("health err = %v", err)
	}
	if ids := r.IDs(); len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("ids = %v", ids)
	}

	out, err := r.Submit(ctx, domain.Action{ID: "x", Kind: domain.ActionMarket, VenueID: "a",
		Side: domain.OrderSideBuy, Size: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatal(err)
	}
	if tr := out.(domain.Filled).Trade; !tr.Price.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("filled at %s", tr.Price)
	}
}

package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeVenue answers from per-venue functions and tracks peak concurrency.
type fakeVenue struct {
	books    map[string]func(ctx context.Context) (domain.MarketSnapshot, error)
	health   map[string][]domain.AccountHealth
	stats    map[string]domain.VenueStats
	statsErr error
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeVenue) OrderBook(ctx context.Context, venueID string, _ int) (domain.MarketSnapshot, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	fn, ok := f.books[venueID]
	if !ok {
		return domain.MarketSnapshot{}, domain.ErrUnknownVenue
	}
	return fn(ctx)
}

func (f *fakeVenue) Stats(_ context.Context, venueID string) (domain.VenueStats, error) {
	f.calls.Add(1)
	if f.statsErr != nil {
		return domain.VenueStats{}, f.statsErr
	}
	st, ok := f.stats[venueID]
	if !ok {
		return domain.VenueStats{}, domain.ErrUnsupported
	}
	return st, nil
}

func (f *fakeVenue) EstimateConversion(context.Context, string, decimal.Decimal, domain.OrderSide) (domain.Conversion, error) {
	return domain.Conversion{}, domain.ErrUnsupported
}

func (f *fakeVenue) Submit(context.Context, domain.Action) (domain.Outcome, error) {
	return nil, domain.ErrUnsupported
}

func (f *fakeVenue) AccountHealth(_ context.Context, venueID string) ([]domain.AccountHealth, error) {
	return f.health[venueID], nil
}

func book(bid, ask string) domain.MarketSnapshot {
	b, a := dec(bid), dec(ask)
	return domain.MarketSnapshot{
		Pair:     "X/USD",
		MidPrice: b.Add(a).Div(decimal.NewFromInt(2)),
		BestBid:  domain.PriceLevel{Price: b, Quantity: dec("10")},
		BestAsk:  domain.PriceLevel{Price: a, Quantity: dec("10")},
		Bids:     []domain.PriceLevel{{Price: b, Quantity: dec("10")}},
		Asks:     []domain.PriceLevel{{Price: a, Quantity: dec("10")}},
	}
}

func ok(s domain.MarketSnapshot) func(context.Context) (domain.MarketSnapshot, error) {
	return func(context.Context) (domain.MarketSnapshot, error) { return s, nil }
}

func TestFetchIsolatesFailures(t *testing.T) {
	fail := true
	v := &fakeVenue{books: map[string]func(context.Context) (domain.MarketSnapshot, error){
		"good": ok(book("1.49", "1.51")),
		"slow": func(ctx context.Context) (domain.MarketSnapshot, error) {
			if !fail {
				return book("1.50", "1.52"), nil
			}
			<-ctx.Done()
			return domain.MarketSnapshot{}, ctx.Err()
		},
		"crossed": ok(book("1.55", "1.50")),
	}}
	agg := New(v, Config{Venues: []string{"good", "slow", "crossed"}, Depth: 5, Timeout: 50 * time.Millisecond}, logger)

	// Prime slow with a good snapshot.
	fail = false
	if _, err := agg.Fetch(context.Background()); err != nil {
		t.Fatalf("prime: %v", err)
	}
	fail = true

	res, err := agg.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, ok := res.Snapshots["good"]; !ok || len(res.Snapshots) != 1 {
		t.Fatalf("fresh snapshots: %v", res.Snapshots)
	}
	stale, ok := res.Stale["slow"]
	if !ok || !stale.Stale {
		t.Fatal("failed venue must expose its previous snapshot marked stale")
	}
	if res.Discarded() != 1 {
		t.Fatalf("discarded: got=%d want=1", res.Discarded())
	}
	for _, f := range res.Failures {
		switch f.VenueID {
		case "crossed":
			if !f.Integrity || !errors.Is(f.Err, domain.ErrCrossedBook) {
				t.Fatalf("crossed: %+v", f)
			}
		case "slow":
			if f.Integrity || f.Consecutive != 1 {
				t.Fatalf("slow: %+v", f)
			}
		}
	}
	if prev, ok := res.Previous["slow"]; !ok || prev.Stale {
		t.Fatal("previous snapshot must be the frozen copy from the last round")
	}
}

func TestFetchConsecutiveFailures(t *testing.T) {
	v := &fakeVenue{books: map[string]func(context.Context) (domain.MarketSnapshot, error){
		"down": func(context.Context) (domain.MarketSnapshot, error) {
			return domain.MarketSnapshot{}, errors.New("connection refused")
		},
	}}
	agg := New(v, Config{Venues: []string{"down"}, Timeout: time.Second}, logger)
	var last Failure
	for i := 0; i < 3; i++ {
		res, _ := agg.Fetch(context.Background())
		last = res.Failures[0]
	}
	if last.Consecutive != 3 {
		t.Fatalf("consecutive: got=%d want=3", last.Consecutive)
	}
}

func TestFetchNoAliasingAcrossTicks(t *testing.T) {
	shared := book("1.49", "1.51")
	v := &fakeVenue{books: map[string]func(context.Context) (domain.MarketSnapshot, error){"a": ok(shared)}}
	agg := New(v, Config{Venues: []string{"a"}, Timeout: time.Second}, logger)

	first, _ := agg.Fetch(context.Background())
	second, _ := agg.Fetch(context.Background())

	first.Snapshots["a"].Bids[0] = domain.PriceLevel{Price: dec("9"), Quantity: dec("9")}
	if second.Previous["a"].Bids[0].Price.Equal(dec("9")) || second.Snapshots["a"].Bids[0].Price.Equal(dec("9")) {
		t.Fatal("level slices must not be shared between ticks")
	}
	if shared.Bids[0].Price.Equal(dec("9")) {
		t.Fatal("adapter slices must not be shared with the tick")
	}
}

func TestFetchBoundedParallelism(t *testing.T) {
	slow := func(ctx context.Context) (domain.MarketSnapshot, error) {
		time.Sleep(20 * time.Millisecond)
		return book("1.49", "1.51"), nil
	}
	v := &fakeVenue{books: map[string]func(context.Context) (domain.MarketSnapshot, error){
		"a": slow, "b": slow, "c": slow, "d": slow,
	}}
	agg := New(v, Config{Venues: []string{"a", "b", "c", "d"}, Timeout: time.Second, MaxParallel: 2}, logger)
	res, _ := agg.Fetch(context.Background())
	if len(res.Snapshots) != 4 {
		t.Fatalf("snapshots: %d", len(res.Snapshots))
	}
	if p := v.peak.Load(); p > 2 {
		t.Fatalf("peak concurrency: got=%d want<=2", p)
	}
}

func TestFetchHealth(t *testing.T) {
	v := &fakeVenue{
		books:  map[string]func(context.Context) (domain.MarketSnapshot, error){},
		health: map[string][]domain.AccountHealth{"lend": {{Account: "x", HealthRatio: dec("1.05")}}},
	}
	agg := New(v, Config{HealthVenues: []string{"lend"}, Timeout: time.Second}, logger)
	first, _ := agg.Fetch(context.Background())
	second, _ := agg.Fetch(context.Background())
	if len(first.Health["lend"]) != 1 || len(first.PrevHealth["lend"]) != 0 {
		t.Fatalf("first: %+v", first)
	}
	if len(second.PrevHealth["lend"]) != 1 {
		t.Fatalf("second previous health: %+v", second.PrevHealth)
	}
}

func TestFetchAttachesStats(t *testing.T) {
	v := &fakeVenue{
		books: map[string]func(context.Context) (domain.MarketSnapshot, error){
			"amm":  ok(book("1.49", "1.51")),
			"clob": ok(book("1.50", "1.52")),
		},
		stats: map[string]domain.VenueStats{"amm": {
			VenueID: "amm",
			Params:  domain.TradeParams{TakerFee: dec("0.003"), MinOrderSize: dec("5")},
			Vault:   &domain.VaultBalances{Base: dec("1000"), Quote: dec("1500")},
		}},
	}
	agg := New(v, Config{Venues: []string{"amm", "clob"}, Timeout: time.Second}, logger)
	res, err := agg.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.calls.Load() != 2 {
		t.Fatalf("stats calls = %d, want 2", v.calls.Load())
	}
	amm := res.Snapshots["amm"]
	if amm.Params == nil || !amm.Params.TakerFee.Equal(dec("0.003")) || !amm.Params.MinOrderSize.Equal(dec("5")) {
		t.Fatalf("amm params = %+v", amm.Params)
	}
	if amm.Vault == nil || !amm.Vault.Quote.Equal(dec("1500")) {
		t.Fatalf("amm vault = %+v", amm.Vault)
	}
	// Unsupported stats leave the book usable.
	clob, ok := res.Snapshots["clob"]
	if !ok || clob.Params != nil || clob.Vault != nil {
		t.Fatalf("clob = %+v ok=%v", clob, ok)
	}

	// A failing stats call does not discard the book.
	v.statsErr = errors.New("stats timeout")
	res, err = agg.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Snapshots) != 2 || len(res.Failures) != 0 {
		t.Fatalf("snapshots=%d failures=%+v", len(res.Snapshots), res.Failures)
	}
}

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// testClient connects to VENUEBOT_TEST_REDIS_ADDR under a random prefix, or
// skips the test when the variable is unset.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("VENUEBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VENUEBOT_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr, Prefix: "venuebot-test-" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKey(t *testing.T) {
	c := &Client{prefix: "venuebot"}
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"lock", "budget"}, "venuebot:lock:budget"},
		{[]string{"venuebot:ticks"}, "venuebot:ticks"},
		{[]string{"snapshot", "alpha", "bbo"}, "venuebot:snapshot:alpha:bbo"},
	}
	for _, tc := range cases {
		if got := c.Key(tc.parts...); got != tc.want {
			t.Fatalf("Key(%v): got=%s want=%s", tc.parts, got, tc.want)
		}
	}
}

func TestParseBBO(t *testing.T) {
	bbo, err := parseBBO(map[string]string{"bid": "99.5", "ask": "100.5", "mid": "100", "ts": "1700000000000000000"})
	if err != nil {
		t.Fatal(err)
	}
	if !bbo.Mid.Equal(decimal.NewFromInt(100)) || bbo.Timestamp.Unix() != 1700000000 {
		t.Fatalf("bbo = %+v", bbo)
	}
	if _, err := parseBBO(map[string]string{"bid": "x", "ask": "1", "mid": "1"}); err == nil {
		t.Fatal("expected error for malformed bid")
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	sc := NewSnapshotCache(c, time.Minute)

	if _, err := sc.GetSnapshot(ctx, "alpha"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty cache err = %v", err)
	}

	snap := domain.MarketSnapshot{
		VenueID:   "alpha",
		Pair:      "ETH/USD",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		MidPrice:  decimal.NewFromInt(100),
		BestBid:   domain.PriceLevel{Price: decimal.NewFromInt(99), Quantity: decimal.NewFromInt(2)},
		BestAsk:   domain.PriceLevel{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(3)},
	}
	snap.Bids = []domain.PriceLevel{snap.BestBid}
	snap.Asks = []domain.PriceLevel{snap.BestAsk}
	if err := sc.SetSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	got, err := sc.GetSnapshot(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if !got.MidPrice.Equal(snap.MidPrice) || len(got.Asks) != 1 || !got.Timestamp.Equal(snap.Timestamp) {
		t.Fatalf("got %+v", got)
	}
	bbo, err := sc.GetBBO(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if !bbo.Ask.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("ask = %s", bbo.Ask)
	}
}

func TestLockExclusive(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lm.Acquire(ctx, "k", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire err = %v", err)
	}
	unlock()
	unlock()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock, err = lm.AcquireWait(waitCtx, "k", time.Minute)
	if err != nil {
		t.Fatalf("acquire after unlock: %v", err)
	}
	unlock()
}

func TestRateLimiterWindow(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "venue:alpha", 3, time.Second)
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "venue:alpha", 3, time.Second); ok {
		t.Fatal("fourth request admitted")
	}

	start := time.Now()
	if err := rl.Wait(ctx, "venue:alpha", 3, 200*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("wait took too long")
	}
}

func TestExposureBudget(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	b := NewExposureBudget(c, NewLockManager(c), "budget", decimal.NewFromInt(1000))

	if err := b.Reserve(ctx, decimal.NewFromInt(600)); err != nil {
		t.Fatal(err)
	}
	if err := b.Reserve(ctx, decimal.NewFromInt(500)); !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("over ceiling err = %v", err)
	}
	if err := b.Release(ctx, decimal.NewFromInt(900)); err != nil {
		t.Fatal(err)
	}
	used, err := b.Used(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !used.IsZero() {
		t.Fatalf("used = %s, want 0", used)
	}
}

func TestSignalBusStream(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sb := NewSignalBus(c, 100)

	msgs, err := sb.Subscribe(ctx, domain.ChannelTicks)
	if err != nil {
		t.Fatal(err)
	}
	if err := sb.Publish(ctx, domain.ChannelTicks, []byte(`{"type":"tick"}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-msgs:
		if string(m) != `{"type":"tick"}` {
			t.Fatalf("payload %s", m)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	for _, p := range []string{"a", "b"} {
		if err := sb.StreamAppend(ctx, domain.StreamTrades, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := sb.StreamRead(ctx, domain.StreamTrades, "0", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || string(got[1].Payload) != "b" {
		t.Fatalf("stream = %+v", got)
	}
}

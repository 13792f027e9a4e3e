package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/venue/rest"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubVenue serves a fixed mid of 50 and counts book reads.
type stubVenue struct {
	books int
}

func (v *stubVenue) OrderBook(ctx context.Context, venueID string, depth int) (domain.MarketSnapshot, error) {
	v.books++
	return domain.MarketSnapshot{VenueID: venueID, MidPrice: decimal.NewFromInt(50)}, nil
}

func (v *stubVenue) Stats(ctx context.Context, venueID string) (domain.VenueStats, error) {
	return domain.VenueStats{VenueID: venueID}, nil
}

func (v *stubVenue) EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side domain.OrderSide) (domain.Conversion, error) {
	return domain.Conversion{}, domain.ErrUnsupported
}

func (v *stubVenue) Submit(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	return nil, domain.ErrUnsupported
}

func pushServer(t *testing.T, frames ...any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil || cmd.Type != "subscribe" || cmd.Market != "ETH-USD" {
			return
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func bookFrame(market, bid, ask string) Message {
	return Message{Type: "book", APIBook: rest.APIBook{
		Market: market,
		Bids:   []rest.APILevel{{Price: bid, Size: "1"}, {Price: "98", Size: "2"}},
		Asks:   []rest.APILevel{{Price: ask, Size: "1"}, {Price: "102", Size: "2"}},
	}}
}

func TestBookStreamServesPushedBook(t *testing.T) {
	srv := pushServer(t,
		bookFrame("OTHER", "1", "2"),
		Message{Type: "book", APIBook: rest.APIBook{Market: "ETH-USD", Bids: []rest.APILevel{{Price: "x", Size: "1"}}}},
		bookFrame("ETH-USD", "99", "101"),
	)
	up := &stubVenue{}
	s := NewBookStream(Config{
		VenueID: "cex",
		Market:  "ETH-USD",
		Pair:    "ETH/USD",
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		MaxAge:  time.Minute,
	}, up, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := s.Latest(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no book pushed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap, err := s.OrderBook(ctx, "cex", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.MidPrice.Equal(decimal.NewFromInt(100)) || len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if up.books != 0 {
		t.Fatalf("upstream read %d times while the push was fresh", up.books)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestBookStreamFallsBackWhenStale(t *testing.T) {
	up := &stubVenue{}
	s := NewBookStream(Config{VenueID: "cex", Market: "ETH-USD", Pair: "ETH/USD", MaxAge: time.Second}, up, logger)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	f := bookFrame("ETH-USD", "99", "101")
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.handle(data); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Latest(); !ok {
		t.Fatal("fresh book not served")
	}

	now = now.Add(2 * time.Second)
	snap, err := s.OrderBook(context.Background(), "cex", 5)
	if err != nil {
		t.Fatal(err)
	}
	if up.books != 1 || !snap.MidPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("stale read: upstream=%d mid=%s", up.books, snap.MidPrice)
	}

	if err := s.handle([]byte(`{"type":"error","message":"bad market"}`)); err == nil {
		t.Fatal("error frame not reported")
	}
	if err := s.handle([]byte(`{`)); !errors.Is(err, domain.ErrDataIntegrity) {
		t.Fatalf("garbage frame err = %v", err)
	}
	if _, err := s.AccountHealth(context.Background(), "cex"); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("health err = %v", err)
	}
}

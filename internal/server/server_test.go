package server

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

	"github.com/alanyoungcy/venuebot/internal/cache/memory"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/server/handler"
	"github.com/alanyoungcy/venuebot/internal/server/ws"
	"github.com/alanyoungcy/venuebot/internal/state"
	"github.com/alanyoungcy/venuebot/internal/strategy"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	view  *state.View
	acked []string
}

func (f *fakeSource) View() *state.View                  { return f.view }
func (f *fakeSource) Stats() domain.TickStats            { return domain.TickStats{Seq: 7, Venues: 2} }
func (f *fakeSource) Skipped() int64                     { return 1 }
func (f *fakeSource) Detectors() []strategy.DetectorInfo { return []strategy.DetectorInfo{{Name: "arbitrage", Runs: 7}} }
func (f *fakeSource) Ack(id string) error {
	for _, a := range f.view.Alerts {
		if a.ID == id {
			f.acked = append(f.acked, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

type failingJournal struct{}

func (failingJournal) InsertTrades(context.Context, []domain.TradeRecord) error { return nil }
func (failingJournal) ListRecent(context.Context, int) ([]domain.TradeRecord, error) {
	return nil, errors.New("db down")
}

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *fakeSource, *memory.SignalBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Now().UTC()
	src := &fakeSource{view: &state.View{
		TakenAt:   now,
		Cash:      decimal.NewFromInt(1000),
		Positions: []domain.Position{{Bucket: "eth", VenueID: "alpha", Size: decimal.NewFromInt(2)}},
		Quoters:   map[string]state.QuoterState{"alpha": state.QuoterQuoting},
		Alerts: []domain.Alert{
			{ID: "old", Category: "spread", VenueID: "alpha", Acknowledged: true},
			{ID: "new", Category: "price", VenueID: "beta"},
		},
		Trades: []domain.TradeRecord{
			{ID: "t1", VenueID: "alpha"},
			{ID: "t2", VenueID: "beta"},
			{ID: "t3", VenueID: "alpha"},
		},
		Rejections: []domain.Rejection{{ID: "r1", Reason: "min_profit"}, {ID: "r2", Reason: "stop_loss"}},
	}}

	bus := memory.NewSignalBus(0)
	hub := ws.NewHub(bus, ws.Config{Mode: "full"}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	srv := NewServer(Config{APIKey: apiKey}, Handlers{
		Health:    handler.NewHealthHandler(nil),
		Status:    handler.NewStatusHandler(src, handler.Meta{Mode: "full", StartedAt: now}),
		Portfolio: handler.NewPortfolioHandler(src, failingJournal{}, logger),
		Config:    handler.NewConfigHandler(map[string]string{"api_key": "***"}),
	}, hub, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, src, bus
}

func getJSON(t *testing.T, req *http.Request, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: got=%d want=%d", req.Method, req.URL.Path, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestStatusEndpoints(t *testing.T) {
	ts, _, _ := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	body := getJSON(t, req, http.StatusOK)
	if body["skipped_ticks"].(float64) != 1 || body["quoters"].(map[string]any)["alpha"] != "quoting" {
		t.Fatalf("status = %v", body)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/alerts?active=true", nil)
	alerts := getJSON(t, req, http.StatusOK)["alerts"].([]any)
	if len(alerts) != 1 || alerts[0].(map[string]any)["id"] != "new" {
		t.Fatalf("alerts = %v", alerts)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/trades?venue=alpha&limit=1", nil)
	trades := getJSON(t, req, http.StatusOK)["trades"].([]any)
	if len(trades) != 1 || trades[0].(map[string]any)["id"] != "t3" {
		t.Fatalf("trades = %v", trades)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/trades?source=journal", nil)
	getJSON(t, req, http.StatusBadGateway)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/rejections?reason=stop_loss", nil)
	rej := getJSON(t, req, http.StatusOK)["rejections"].([]any)
	if len(rej) != 1 {
		t.Fatalf("rejections = %v", rej)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/positions", nil)
	if pos := getJSON(t, req, http.StatusOK)["positions"].([]any); len(pos) != 1 {
		t.Fatalf("positions = %v", pos)
	}
}

func TestAckAlert(t *testing.T) {
	ts, src, _ := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/alerts/new/ack", nil)
	getJSON(t, req, http.StatusAccepted)
	if len(src.acked) != 1 || src.acked[0] != "new" {
		t.Fatalf("acked = %v", src.acked)
	}

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/alerts/missing/ack", nil)
	getJSON(t, req, http.StatusNotFound)
}

func TestAuth(t *testing.T) {
	ts, _, _ := newTestServer(t, "secret")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	if body := getJSON(t, req, http.StatusOK); body["status"] != "ok" {
		t.Fatalf("health = %v", body)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/config", nil)
	getJSON(t, req, http.StatusUnauthorized)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/config", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if body := getJSON(t, req, http.StatusOK); body["api_key"] != "***" {
		t.Fatalf("config = %v", body)
	}
}

func TestWebSocketStreamsBusEvents(t *testing.T) {
	ts, _, bus := newTestServer(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello domain.Event
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		t.Fatalf("hello = %+v err=%v", hello, err)
	}

	// The hub subscribes asynchronously; publish until the event arrives.
	payload := []byte(`{"type":"alert","payload":{"id":"a1"}}`)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				_ = bus.Publish(context.Background(), domain.ChannelAlerts, payload)
			}
		}
	}()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != string(payload) {
		t.Fatalf("message = %s", msg)
	}
}

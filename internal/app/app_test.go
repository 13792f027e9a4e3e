package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/config"
	"github.com/alanyoungcy/venuebot/internal/domain"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Mode = "monitor"
	cfg.DryRun = true
	cfg.Server.Enabled = false
	cfg.Portfolio.Cash = config.Dec("1000")
	cfg.Venues = []config.VenueConfig{
		{ID: "a", Adapter: "paper", Pair: "ETH/USD"},
		{ID: "b", Adapter: "paper", Pair: "ETH/USD"},
	}
	cfg.Portfolio.Holdings = []config.HoldingConfig{
		{Bucket: "eth", Venue: "a", Size: config.Dec("2"), EntryPrice: config.Dec("90")},
	}
	cfg.Alerts.Enabled = true
	cfg.Alerts.Price = config.Breakpoints{
		Medium:   config.Dec("0.01"),
		High:     config.Dec("0.03"),
		Critical: config.Dec("0.05"),
	}
	return &cfg
}

func book(t *testing.T, venue string, bid, ask int64) domain.MarketSnapshot {
	t.Helper()
	s, err := analytics.BuildSnapshot(venue, "ETH/USD", time.Now(),
		[]domain.PriceLevel{{Price: decimal.NewFromInt(bid), Quantity: decimal.NewFromInt(10)}},
		[]domain.PriceLevel{{Price: decimal.NewFromInt(ask), Quantity: decimal.NewFromInt(10)}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func wireAndBuild(t *testing.T, cfg *config.Config) *runtime {
	t.Helper()
	deps, cleanup, err := Wire(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	t.Cleanup(cleanup)
	if deps.Bus == nil {
		t.Fatal("no signal bus without redis")
	}
	if len(deps.Checks) != 0 {
		t.Fatalf("checks = %v, want none with every service disabled", deps.Checks)
	}
	rt, err := build(cfg, deps, time.Now().UTC(), logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return rt
}

func TestBuildSeedsPortfolio(t *testing.T) {
	rt := wireAndBuild(t, testConfig())

	if !rt.store.Cash().Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("cash = %s", rt.store.Cash())
	}
	p, ok := rt.store.Position("eth")
	if !ok || !p.Size.Equal(decimal.NewFromInt(2)) || p.VenueID != "a" {
		t.Fatalf("position = %+v, %v", p, ok)
	}
	if len(rt.venues.papers) != 2 {
		t.Fatalf("paper venues = %d", len(rt.venues.papers))
	}
	if rt.server != nil {
		t.Fatal("server built while disabled")
	}
	infos := rt.scheduler.Detectors()
	if len(infos) != 1 || infos[0].Name != "alerter" {
		t.Fatalf("detectors = %+v", infos)
	}
}

func TestTickRaisesPriceAlert(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Enabled = true
	rt := wireAndBuild(t, cfg)
	ctx := context.Background()

	rt.venues.papers["a"].SetBook(book(t, "a", 99, 101))
	rt.venues.papers["b"].SetBook(book(t, "b", 99, 101))
	if stats := rt.scheduler.Tick(ctx); stats.Venues != 2 || stats.Failed != 0 || stats.Err != "" {
		t.Fatalf("first tick stats = %+v", stats)
	}
	if n := len(rt.scheduler.View().Alerts); n != 0 {
		t.Fatalf("alerts after first tick = %d", n)
	}

	rt.venues.papers["b"].SetBook(book(t, "b", 109, 111))
	rt.scheduler.Tick(ctx)

	alerts := rt.scheduler.View().Alerts
	if len(alerts) != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}
	if alerts[0].VenueID != "b" || alerts[0].Category != string(domain.MetricPrice) || alerts[0].Severity != domain.SeverityCritical {
		t.Fatalf("alert = %+v", alerts[0])
	}

	rec := httptest.NewRecorder()
	rt.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?venue=b", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/alerts = %d", rec.Code)
	}
	var body struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].ID != alerts[0].ID {
		t.Fatalf("served alerts = %+v", body.Alerts)
	}

	rec = httptest.NewRecorder()
	rt.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
}

func TestLoadSignerOnlyRequiredForLiveVenues(t *testing.T) {
	cfg := testConfig()
	signer, err := loadSigner(cfg)
	if err != nil || signer != nil {
		t.Fatalf("dry run: signer=%v err=%v", signer, err)
	}

	cfg.DryRun = false
	cfg.Venues[0].Adapter = "rest"
	cfg.Venues[0].BaseURL = "http://127.0.0.1:1"
	if _, err := loadSigner(cfg); err == nil {
		t.Fatal("live rest venue without a key loaded")
	}

	cfg.Wallet.PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	signer, err = loadSigner(cfg)
	if err != nil || signer == nil {
		t.Fatalf("raw key: signer=%v err=%v", signer, err)
	}
}

func TestBudgetOnlyWithCeiling(t *testing.T) {
	cfg := testConfig()
	deps := &Dependencies{}
	if b := deps.budget(cfg); b != nil {
		t.Fatalf("budget without ceiling = %T", b)
	}
	cfg.Risk.MaxAggregateExposure = config.Dec("500")
	cfg.Risk.SharedBudget = "redis"
	b := deps.budget(cfg)
	if b == nil {
		t.Fatal("no budget with a ceiling")
	}
	if err := b.Reserve(context.Background(), decimal.NewFromInt(600)); err == nil {
		t.Fatal("reserve above ceiling succeeded")
	}
}

func TestSpreadAdjustersSkipUnset(t *testing.T) {
	m := config.MarketMakerConfig{DepthLevels: 5}
	if n := len(spreadAdjusters(m)); n != 0 {
		t.Fatalf("adjusters = %d", n)
	}
	m.VolatilityMultiplier = config.Dec("2")
	m.ThinDepth = config.Dec("10")
	m.ThinDepthPercent = config.Dec("0.001")
	m.Sessions = []config.SessionConfig{{StartHour: 13, EndHour: 15, SpreadPercent: config.Dec("0.002")}}
	names := []string{}
	for _, a := range spreadAdjusters(m) {
		names = append(names, a.Name())
	}
	if len(names) != 3 || names[0] != "volatility" || names[1] != "depth" || names[2] != "time_of_day" {
		t.Fatalf("adjusters = %v", names)
	}
}

package app

import (
	"log/slog"
	"time"

	"github.com/alanyoungcy/venuebot/internal/aggregator"
	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/config"
	"github.com/alanyoungcy/venuebot/internal/executor"
	"github.com/alanyoungcy/venuebot/internal/risk"
	"github.com/alanyoungcy/venuebot/internal/scheduler"
	"github.com/alanyoungcy/venuebot/internal/server"
	"github.com/alanyoungcy/venuebot/internal/server/handler"
	"github.com/alanyoungcy/venuebot/internal/server/ws"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// runtime is one fully built instance: the tick loop and, when enabled, the
// status server reading from it.
type runtime struct {
	venues    *venueSet
	store     *state.Store
	scheduler *scheduler.Scheduler
	hub       *ws.Hub
	server    *server.Server
}

// build assembles the tick loop for cfg on top of deps. Nothing is started.
func build(cfg *config.Config, deps *Dependencies, startedAt time.Time, logger *slog.Logger) (*runtime, error) {
	venues, err := buildVenues(cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	registry, err := newDetectorRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := seedStore(cfg, startedAt)

	var healthVenues []string
	for _, vc := range cfg.Venues {
		if vc.Health {
			healthVenues = append(healthVenues, vc.ID)
		}
	}
	agg := aggregator.New(venues.router, aggregator.Config{
		Venues:       cfg.VenueIDs(),
		Depth:        cfg.Scheduler.BookDepth,
		Timeout:      cfg.Scheduler.VenueTimeout.Duration,
		MaxParallel:  cfg.Scheduler.MaxParallel,
		HealthVenues: healthVenues,
	}, logger)

	rk := cfg.Risk
	gate := risk.NewGate(risk.Config{
		MaxPositionSize:    rk.MaxPositionSize.Decimal,
		MinProfit:          rk.MinProfit.Decimal,
		StopLoss:           rk.StopLoss.Decimal,
		MinFillRatio:       rk.MinFillRatio.Decimal,
		MaxSlippagePercent: rk.MaxSlippagePercent.Decimal,
	}, logger)

	dispatcher := executor.NewDispatcher(venues.router, store, executor.Options{
		SubmitTimeout: cfg.Scheduler.SubmitTimeout.Duration,
		DedupTTL:      rk.DedupTTL.Duration,
		Budget:        deps.budget(cfg),
		Journal:       deps.Journal,
		Audit:         deps.Audit,
		Bus:           deps.Bus,
		Archiver:      deps.Archiver,
	}, logger)

	sched := scheduler.New(scheduler.Config{
		TickInterval:           cfg.Scheduler.TickInterval.Duration,
		ErrorBackoff:           cfg.Scheduler.ErrorBackoff.Duration,
		VenueFailureAlertTicks: cfg.Scheduler.VenueFailureAlertTicks,
	}, agg, registry, gate, dispatcher, store, scheduler.Options{
		History:  newHistory(cfg),
		Cache:    deps.Cache,
		Alerts:   deps.Alerts,
		Audit:    deps.Audit,
		Bus:      deps.Bus,
		Notifier: deps.Notifier,
	}, logger)

	rt := &runtime{venues: venues, store: store, scheduler: sched}
	if cfg.Server.Enabled {
		rt.hub = ws.NewHub(deps.Bus, ws.Config{
			Mode:           cfg.Mode,
			DryRun:         cfg.DryRun,
			StartedAt:      startedAt,
			AllowedOrigins: cfg.Server.CORSOrigins,
		}, logger)
		rt.server = server.NewServer(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			APIKey:      cfg.Server.APIKey,
			Limiter:     deps.Limiter,
			RateLimit:   cfg.Server.RateLimit,
		}, server.Handlers{
			Health: handler.NewHealthHandler(deps.Checks),
			Status: handler.NewStatusHandler(sched, handler.Meta{
				Mode:      cfg.Mode,
				DryRun:    cfg.DryRun,
				Venues:    cfg.VenueIDs(),
				StartedAt: startedAt,
			}),
			Portfolio: handler.NewPortfolioHandler(sched, deps.Journal, logger),
			Config:    handler.NewConfigHandler(config.RedactedConfig(cfg)),
		}, rt.hub, logger)
	}

	logger.Info("runtime built",
		slog.Int("venues", len(cfg.Venues)),
		slog.Int("detectors", len(registry.Detectors())),
		slog.Bool("server", rt.server != nil),
		slog.String("cash", store.Cash().String()),
	)
	return rt, nil
}

// seedStore creates the State Store with the configured cash, holdings and
// rebalance targets.
func seedStore(cfg *config.Config, at time.Time) *state.Store {
	store := state.New(state.Limits{
		AlertMaxAge:   cfg.Retention.AlertMaxAge.Duration,
		MaxTrades:     cfg.Retention.MaxTradeRecords,
		MaxRejections: cfg.Retention.MaxRejections,
	}, cfg.Portfolio.Cash.Decimal)

	for _, h := range cfg.Portfolio.Holdings {
		store.SeedPosition(state.Bucket(h.Venue, h.Bucket), h.Venue, h.Size.Decimal, h.EntryPrice.Decimal, at)
	}
	if cfg.StrategyActive("rebalance") {
		for _, b := range cfg.Rebalance.Buckets {
			store.SetTarget(b.Name, b.Venue, b.TargetPercent.Decimal)
		}
	}
	return store
}

// newHistory sizes the mid-price history to one point per tick across the
// configured window.
func newHistory(cfg *config.Config) *analytics.History {
	window := cfg.Scheduler.HistoryWindow.Duration
	points := 0
	if tick := cfg.Scheduler.TickInterval.Duration; tick > 0 {
		points = int(window/tick) + 1
	}
	return analytics.NewHistory(window, points)
}

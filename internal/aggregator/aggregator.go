// Package aggregator fetches one validated snapshot per venue per tick.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
)

// Config controls a fetch round.
type Config struct {
	Venues       []string
	Depth        int
	Timeout      time.Duration
	MaxParallel  int
	HealthVenues []string
}

// Failure describes a venue that contributed no snapshot this tick.
type Failure struct {
	VenueID string
	Err     error
	// Integrity is true when the venue answered with a malformed book.
	Integrity bool
	// Consecutive counts transient failures in a row, zero for integrity
	// discards.
	Consecutive int
}

// Result is one tick's view of the venues.
type Result struct {
	// Snapshots are the fresh, validated snapshots.
	Snapshots map[string]domain.MarketSnapshot
	// Previous holds each venue's snapshot from before this round.
	Previous map[string]domain.MarketSnapshot
	// Stale holds, for venues that failed, their last snapshot marked
	// stale. These are never mixed into Snapshots.
	Stale      map[string]domain.MarketSnapshot
	Failures   []Failure
	Health     map[string][]domain.AccountHealth
	PrevHealth map[string][]domain.AccountHealth
}

// Discarded counts integrity failures.
func (r Result) Discarded() int {
	n := 0
	for _, f := range r.Failures {
		if f.Integrity {
			n++
		}
	}
	return n
}

// Aggregator fans out snapshot queries with a bounded number of concurrent
// requests and an independent timeout per venue. It remembers the last good
// snapshot of each venue and is meant to be driven by a single goroutine.
type Aggregator struct {
	venue  domain.Venue
	cfg    Config
	logger *slog.Logger

	last       map[string]domain.MarketSnapshot
	lastHealth map[string][]domain.AccountHealth
	failures   map[string]int
}

// New creates an Aggregator over venue, usually a venue.Router.
func New(venue domain.Venue, cfg Config, logger *slog.Logger) *Aggregator {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = len(cfg.Venues) + len(cfg.HealthVenues)
	}
	return &Aggregator{
		venue:      venue,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "aggregator")),
		last:       make(map[string]domain.MarketSnapshot),
		lastHealth: make(map[string][]domain.AccountHealth),
		failures:   make(map[string]int),
	}
}

type fetched struct {
	snap     domain.MarketSnapshot
	err      error
	statsErr error
}

type fetchedHealth struct {
	accounts []domain.AccountHealth
	err      error
}

// Fetch queries every configured venue concurrently. A venue failure never
// affects the others; Fetch itself only fails when ctx is done.
func (a *Aggregator) Fetch(ctx context.Context) (Result, error) {
	snaps := make([]fetched, len(a.cfg.Venues))
	health := make([]fetchedHealth, len(a.cfg.HealthVenues))
	hs, hasHealth := a.venue.(domain.HealthSource)

	var g errgroup.Group
	g.SetLimit(a.cfg.MaxParallel)
	for i, id := range a.cfg.Venues {
		g.Go(func() error {
			snaps[i] = a.fetchOne(ctx, id)
			return nil
		})
	}
	if hasHealth {
		for i, id := range a.cfg.HealthVenues {
			g.Go(func() error {
				vctx, cancel := a.withTimeout(ctx)
				defer cancel()
				accounts, err := hs.AccountHealth(vctx, id)
				health[i] = fetchedHealth{accounts: accounts, err: err}
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("aggregator: fetch: %w", err)
	}

	res := Result{
		Snapshots:  make(map[string]domain.MarketSnapshot, len(snaps)),
		Previous:   make(map[string]domain.MarketSnapshot, len(a.last)),
		Stale:      make(map[string]domain.MarketSnapshot),
		Health:     make(map[string][]domain.AccountHealth),
		PrevHealth: make(map[string][]domain.AccountHealth),
	}
	for id, s := range a.last {
		res.Previous[id] = s.Clone()
	}

	for i, id := range a.cfg.Venues {
		f := snaps[i]
		if f.statsErr != nil {
			a.logger.WarnContext(ctx, "venue stats unavailable",
				slog.String("venue", id),
				slog.String("error", f.statsErr.Error()),
			)
		}
		if f.err == nil {
			a.failures[id] = 0
			a.last[id] = f.snap.Clone()
			res.Snapshots[id] = f.snap
			continue
		}

		failure := Failure{VenueID: id, Err: f.err, Integrity: errors.Is(f.err, domain.ErrDataIntegrity)}
		if failure.Integrity {
			a.logger.WarnContext(ctx, "data integrity: snapshot discarded",
				slog.String("venue", id),
				slog.String("error", f.err.Error()),
			)
		} else {
			a.failures[id]++
			failure.Consecutive = a.failures[id]
			a.logger.WarnContext(ctx, "venue fetch failed",
				slog.String("venue", id),
				slog.Int("consecutive", failure.Consecutive),
				slog.String("error", f.err.Error()),
			)
		}
		res.Failures = append(res.Failures, failure)

		if prev, ok := a.last[id]; ok {
			stale := prev.Clone()
			stale.Stale = true
			res.Stale[id] = stale
		}
	}

	for id, accounts := range a.lastHealth {
		res.PrevHealth[id] = accounts
	}
	if hasHealth {
		for i, id := range a.cfg.HealthVenues {
			h := health[i]
			if h.err != nil {
				a.logger.WarnContext(ctx, "health fetch failed",
					slog.String("venue", id),
					slog.String("error", h.err.Error()),
				)
				continue
			}
			accounts := append([]domain.AccountHealth(nil), h.accounts...)
			res.Health[id] = accounts
			a.lastHealth[id] = append([]domain.AccountHealth(nil), accounts...)
		}
	}
	return res, nil
}

// fetchOne queries a venue's book and stats under one timeout and
// validates the answer. Stats are optional: a venue without them, or one
// whose stats call fails, still contributes its book.
func (a *Aggregator) fetchOne(ctx context.Context, venueID string) fetched {
	vctx, cancel := a.withTimeout(ctx)
	defer cancel()

	snap, err := a.venue.OrderBook(vctx, venueID, a.cfg.Depth)
	if err != nil {
		return fetched{err: fmt.Errorf("aggregator: %s: %w", venueID, err)}
	}
	if snap.VenueID == "" {
		snap.VenueID = venueID
	}
	if err := analytics.Validate(snap); err != nil {
		return fetched{err: err}
	}
	snap = snap.Clone()
	snap.Stale = false

	var statsErr error
	stats, err := a.venue.Stats(vctx, venueID)
	switch {
	case err == nil:
		params := stats.Params
		snap.Params = &params
		if stats.Vault != nil {
			vault := *stats.Vault
			snap.Vault = &vault
		}
	case !errors.Is(err, domain.ErrUnsupported):
		statsErr = fmt.Errorf("aggregator: %s: stats: %w", venueID, err)
	}
	return fetched{snap: snap, statsErr: statsErr}
}

func (a *Aggregator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Timeout)
}

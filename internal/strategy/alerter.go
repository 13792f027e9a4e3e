package strategy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// Breakpoints are ascending medium/high/critical thresholds for a metric
// change, as fractions.
type Breakpoints struct {
	Medium   decimal.Decimal
	High     decimal.Decimal
	Critical decimal.Decimal
}

func (b Breakpoints) severity(v decimal.Decimal) (domain.Severity, bool) {
	return severityFor(v, b.Medium, b.High, b.Critical)
}

// AlerterConfig configures the threshold alerter.
type AlerterConfig struct {
	Venues      []string
	Price       Breakpoints
	Spread      Breakpoints
	Depth       Breakpoints
	DepthLevels int
}

// Alerter compares each venue's snapshot with the one immediately before it.
// Price and depth use the relative change; spread uses the absolute change
// in spread percent.
type Alerter struct {
	cfg    AlerterConfig
	logger *slog.Logger
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg AlerterConfig, logger *slog.Logger) *Alerter {
	return &Alerter{cfg: cfg, logger: logger.With(slog.String("strategy", "alerter"))}
}

// Name returns the detector identifier.
func (a *Alerter) Name() string { return "alerter" }

// Detect returns one action-less proposal per breached metric.
func (a *Alerter) Detect(_ context.Context, tick Tick, _ state.Reader) ([]domain.Proposal, error) {
	venues := make([]string, 0, len(tick.Snapshots))
	for id := range tick.Snapshots {
		if selected(a.cfg.Venues, id) {
			venues = append(venues, id)
		}
	}
	sort.Strings(venues)

	var proposals []domain.Proposal
	for _, id := range venues {
		cur := tick.Snapshots[id]
		prev, ok := tick.Previous[id]
		if !ok || cur.Stale {
			continue
		}

		prevDepth := a.depth(prev)
		curDepth := a.depth(cur)
		checks := []struct {
			metric     domain.Metric
			prev, cur  decimal.Decimal
			change     decimal.Decimal
			breakpoint Breakpoints
		}{
			{domain.MetricPrice, prev.MidPrice, cur.MidPrice, analytics.ChangePercent(prev.MidPrice, cur.MidPrice), a.cfg.Price},
			{domain.MetricSpread, prev.SpreadPercent, cur.SpreadPercent, cur.SpreadPercent.Sub(prev.SpreadPercent).Abs(), a.cfg.Spread},
			{domain.MetricDepth, prevDepth, curDepth, analytics.ChangePercent(prevDepth, curDepth), a.cfg.Depth},
		}
		for _, c := range checks {
			sev, breached := c.breakpoint.severity(c.change)
			if !breached {
				continue
			}
			opp := domain.ThresholdBreach{
				Meta:          newMeta(tick.Now),
				VenueID:       id,
				Metric:        c.metric,
				PreviousValue: c.prev,
				CurrentValue:  c.cur,
				Change:        c.change,
				Severity:      sev,
			}
			proposals = append(proposals, domain.Proposal{Opportunity: opp})
		}
	}
	return proposals, nil
}

// depth is the combined bid and ask quantity over the configured levels.
func (a *Alerter) depth(s domain.MarketSnapshot) decimal.Decimal {
	return analytics.CumulativeDepth(s.Bids, a.cfg.DepthLevels).Add(analytics.CumulativeDepth(s.Asks, a.cfg.DepthLevels))
}

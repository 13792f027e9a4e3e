// Package strategy holds the opportunity detectors run once per tick:
// cross-venue arbitrage, market-making quotes, portfolio rebalancing,
// threshold alerts and the liquidation scanner.
package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// Tick is the read-only input every detector receives.
type Tick struct {
	Seq int64
	Now time.Time
	// Snapshots are this tick's validated, fresh snapshots by venue.
	Snapshots map[string]domain.MarketSnapshot
	// Previous holds the last snapshot seen for each venue before this
	// tick, frozen copies never shared with Snapshots.
	Previous   map[string]domain.MarketSnapshot
	Health     map[string][]domain.AccountHealth
	PrevHealth map[string][]domain.AccountHealth
	History    *analytics.History
}

// Detector turns a tick into proposals. Detectors must not mutate the tick
// or keep references to its slices.
type Detector interface {
	Name() string
	Detect(ctx context.Context, tick Tick, st state.Reader) ([]domain.Proposal, error)
}

func newMeta(now time.Time) domain.Meta {
	return domain.Meta{OpportunityID: uuid.NewString(), DetectedAt: now}
}

func newAction(kind domain.ActionKind, venueID string, opp domain.Opportunity, now time.Time) domain.Action {
	return domain.Action{
		ID:          uuid.NewString(),
		Kind:        kind,
		VenueID:     venueID,
		Opportunity: opp,
		CreatedAt:   now,
	}
}

// selected reports whether venueID is in venues; an empty list selects all.
func selected(venues []string, venueID string) bool {
	if len(venues) == 0 {
		return true
	}
	for _, v := range venues {
		if v == venueID {
			return true
		}
	}
	return false
}

// severityFor maps value onto ascending breakpoints. Zero breakpoints are
// ignored.
func severityFor(value decimal.Decimal, medium, high, critical decimal.Decimal) (domain.Severity, bool) {
	switch {
	case critical.IsPositive() && value.GreaterThanOrEqual(critical):
		return domain.SeverityCritical, true
	case high.IsPositive() && value.GreaterThanOrEqual(high):
		return domain.SeverityHigh, true
	case medium.IsPositive() && value.GreaterThanOrEqual(medium):
		return domain.SeverityMedium, true
	}
	return domain.SeverityLow, false
}

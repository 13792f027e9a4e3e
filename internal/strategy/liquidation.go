package strategy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// LiquidationConfig configures the liquidation scanner. Health breakpoints
// descend: Medium >= High >= Critical.
type LiquidationConfig struct {
	Venues []string
	Health Breakpoints
}

// Liquidation flags accounts whose health ratio is at or below the medium
// breakpoint and fell since the previous tick. Candidates are reported,
// never acted upon.
type Liquidation struct {
	cfg    LiquidationConfig
	logger *slog.Logger
}

// NewLiquidation creates a liquidation scanner.
func NewLiquidation(cfg LiquidationConfig, logger *slog.Logger) *Liquidation {
	return &Liquidation{cfg: cfg, logger: logger.With(slog.String("strategy", "liquidation"))}
}

// Name returns the detector identifier.
func (l *Liquidation) Name() string { return "liquidation" }

// Detect returns one action-less proposal per candidate, ranked by bonus.
func (l *Liquidation) Detect(ctx context.Context, tick Tick, _ state.Reader) ([]domain.Proposal, error) {
	venues := make([]string, 0, len(tick.Health))
	for id := range tick.Health {
		if selected(l.cfg.Venues, id) {
			venues = append(venues, id)
		}
	}
	sort.Strings(venues)

	var proposals []domain.Proposal
	for _, venueID := range venues {
		accounts := tick.Health[venueID]
		prev := make(map[string]decimal.Decimal, len(tick.PrevHealth[venueID]))
		for _, acc := range tick.PrevHealth[venueID] {
			prev[NormalizeAccount(acc.Account)] = acc.HealthRatio
		}

		for _, acc := range accounts {
			if acc.HealthRatio.GreaterThan(l.cfg.Health.Medium) {
				continue
			}
			account := NormalizeAccount(acc.Account)
			before, seen := prev[account]
			if seen && !acc.HealthRatio.LessThan(before) {
				continue
			}

			opp := domain.LiquidationCandidate{
				Meta:           newMeta(tick.Now),
				VenueID:        venueID,
				Account:        account,
				HealthRatio:    acc.HealthRatio,
				PreviousHealth: before,
				EstimatedBonus: acc.DebtValue.Mul(acc.LiquidationBonus),
				Severity:       l.severity(acc.HealthRatio),
			}
			l.logger.DebugContext(ctx, "liquidation: candidate",
				slog.String("venue", venueID),
				slog.String("account", account),
				slog.String("health", acc.HealthRatio.String()),
			)
			proposals = append(proposals, domain.Proposal{Opportunity: opp, Score: opp.EstimatedBonus})
		}
	}

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Score.GreaterThan(proposals[j].Score)
	})
	return proposals, nil
}

func (l *Liquidation) severity(health decimal.Decimal) domain.Severity {
	switch {
	case health.LessThanOrEqual(l.cfg.Health.Critical):
		return domain.SeverityCritical
	case health.LessThanOrEqual(l.cfg.Health.High):
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// NormalizeAccount returns the checksummed form of hex addresses and the
// input unchanged otherwise.
func NormalizeAccount(account string) string {
	if common.IsHexAddress(account) {
		return common.HexToAddress(account).Hex()
	}
	return account
}

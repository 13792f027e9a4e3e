package app

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/venuebot/internal/config"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/strategy"
)

// newDetectorRegistry registers the detectors active under cfg.Mode.
func newDetectorRegistry(cfg *config.Config, logger *slog.Logger) (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	var detectors []strategy.Detector

	if cfg.StrategyActive("arbitrage") {
		a := cfg.Arbitrage
		detectors = append(detectors, strategy.NewArbitrage(strategy.ArbitrageConfig{
			MinEdgePercent:       a.MinEdgePercent.Decimal,
			MinProfit:            a.MinProfit.Decimal,
			MaxNotional:          a.MaxNotional.Decimal,
			FeePercent:           a.FeePercent.Decimal,
			GasCost:              a.GasCost.Decimal,
			TopK:                 a.TopK,
			SlippageGuardPercent: a.SlippageGuardPercent.Decimal,
		}, logger))
	}

	if cfg.StrategyActive("market_maker") {
		m := cfg.MarketMaker
		detectors = append(detectors, strategy.NewQuoting(strategy.QuotingConfig{
			Venues:            m.Venues,
			BaseSpreadPercent: m.BaseSpreadPercent.Decimal,
			QuoteSize:         m.QuoteSize.Decimal,
			RefreshInterval:   m.RefreshInterval.Duration,
			MaxInventory:      m.MaxInventory.Decimal,
		}, spreadAdjusters(m), logger))
	}

	if cfg.StrategyActive("rebalance") {
		buckets := make([]strategy.Bucket, 0, len(cfg.Rebalance.Buckets))
		for _, b := range cfg.Rebalance.Buckets {
			kind := domain.ActionMarket
			if b.Action == "swap" {
				kind = domain.ActionSwap
			}
			buckets = append(buckets, strategy.Bucket{
				Name:             b.Name,
				VenueID:          b.Venue,
				TargetPercent:    b.TargetPercent.Decimal,
				ThresholdPercent: b.ThresholdPercent.Decimal,
				Kind:             kind,
			})
		}
		detectors = append(detectors, strategy.NewRebalance(strategy.RebalanceConfig{
			Buckets:              buckets,
			SlippageGuardPercent: cfg.Rebalance.SlippageGuardPercent.Decimal,
		}, logger))
	}

	if cfg.StrategyActive("alerts") {
		al := cfg.Alerts
		detectors = append(detectors, strategy.NewAlerter(strategy.AlerterConfig{
			Venues:      al.Venues,
			Price:       breakpoints(al.Price),
			Spread:      breakpoints(al.Spread),
			Depth:       breakpoints(al.Depth),
			DepthLevels: al.DepthLevels,
		}, logger))
	}

	if cfg.StrategyActive("liquidation") {
		detectors = append(detectors, strategy.NewLiquidation(strategy.LiquidationConfig{
			Venues: cfg.Liquidation.Venues,
			Health: breakpoints(cfg.Liquidation.Health),
		}, logger))
	}

	for _, d := range detectors {
		if err := reg.Register(d); err != nil {
			return nil, fmt.Errorf("app: register detector: %w", err)
		}
	}
	return reg, nil
}

// spreadAdjusters builds the quote widening chain. Adjusters whose
// parameters are unset are left out.
func spreadAdjusters(m config.MarketMakerConfig) []strategy.SpreadAdjuster {
	var out []strategy.SpreadAdjuster
	if m.VolatilityMultiplier.IsPositive() {
		out = append(out, strategy.VolatilityAdjuster{Multiplier: m.VolatilityMultiplier.Decimal})
	}
	if m.ThinDepth.IsPositive() && m.ThinDepthPercent.IsPositive() {
		out = append(out, strategy.DepthAdjuster{
			Levels: m.DepthLevels,
			Thin:   m.ThinDepth.Decimal,
			Extra:  m.ThinDepthPercent.Decimal,
		})
	}
	if len(m.Sessions) > 0 {
		sessions := make([]strategy.Session, 0, len(m.Sessions))
		for _, s := range m.Sessions {
			sessions = append(sessions, strategy.Session{
				StartHour: s.StartHour,
				EndHour:   s.EndHour,
				Extra:     s.SpreadPercent.Decimal,
			})
		}
		out = append(out, strategy.TimeOfDayAdjuster{Sessions: sessions})
	}
	return out
}

func breakpoints(b config.Breakpoints) strategy.Breakpoints {
	return strategy.Breakpoints{
		Medium:   b.Medium.Decimal,
		High:     b.High.Decimal,
		Critical: b.Critical.Decimal,
	}
}

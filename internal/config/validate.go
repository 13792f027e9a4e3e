package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"arbitrage":    true,
	"market_maker": true,
	"rebalance":    true,
	"monitor":      true,
	"full":         true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSeverities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. A failing config must stop the
// process before the first tick.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: arbitrage, market_maker, rebalance, monitor, full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Scheduler
	s := c.Scheduler
	if s.TickInterval.Duration <= 0 {
		add("scheduler: tick_interval must be > 0")
	}
	if s.VenueTimeout.Duration <= 0 {
		add("scheduler: venue_timeout must be > 0")
	}
	if s.SubmitTimeout.Duration <= 0 {
		add("scheduler: submit_timeout must be > 0")
	}
	if s.ErrorBackoff.Duration <= 0 {
		add("scheduler: error_backoff must be > 0")
	}
	if s.MaxParallel < 1 {
		add("scheduler: max_parallel must be >= 1")
	}
	if s.BookDepth < 1 {
		add("scheduler: book_depth must be >= 1")
	}
	if s.VenueFailureAlertTicks < 1 {
		add("scheduler: venue_failure_alert_ticks must be >= 1")
	}

	// Venues
	known := make(map[string]VenueConfig, len(c.Venues))
	if len(c.Venues) == 0 {
		add("venues: at least one venue must be configured")
	}
	needsKey := false
	for i, v := range c.Venues {
		if strings.TrimSpace(v.ID) == "" {
			add("venues[%d]: id must not be empty", i)
			continue
		}
		if _, dup := known[v.ID]; dup {
			add("venues[%d]: duplicate id %q", i, v.ID)
		}
		known[v.ID] = v
		if v.Pair == "" {
			add("venues[%d] %s: pair must not be empty", i, v.ID)
		}
		switch v.Adapter {
		case "rest":
			if v.BaseURL == "" {
				add("venues[%d] %s: base_url is required for the rest adapter", i, v.ID)
			}
			if !c.DryRun {
				needsKey = true
			}
		case "paper":
			if v.BaseURL == "" && !c.DryRun {
				add("venues[%d] %s: a paper venue without base_url only runs with dry_run", i, v.ID)
			}
		default:
			add("venues[%d] %s: unknown adapter %q (valid: rest, paper)", i, v.ID, v.Adapter)
		}
		if v.RateLimit < 0 {
			add("venues[%d] %s: rate_limit must be >= 0", i, v.ID)
		}
		if v.PaperTakerFee.IsNegative() {
			add("venues[%d] %s: paper_taker_fee must be >= 0", i, v.ID)
		}
		if v.StreamURL != "" {
			if v.BaseURL == "" {
				add("venues[%d] %s: stream_url requires base_url", i, v.ID)
			}
			if !strings.HasPrefix(v.StreamURL, "ws://") && !strings.HasPrefix(v.StreamURL, "wss://") {
				add("venues[%d] %s: stream_url must be a ws:// or wss:// url", i, v.ID)
			}
		}
	}
	checkVenueRefs := func(section string, ids []string) {
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				add("%s: unknown venue %q", section, id)
			}
		}
	}

	// Portfolio
	if c.Portfolio.Cash.IsNegative() {
		add("portfolio: cash must be >= 0")
	}
	for i, h := range c.Portfolio.Holdings {
		if h.Bucket == "" {
			add("portfolio.holdings[%d]: bucket must not be empty", i)
		}
		checkVenueRefs(fmt.Sprintf("portfolio.holdings[%d]", i), []string{h.Venue})
		if h.EntryPrice.IsNegative() {
			add("portfolio.holdings[%d]: entry_price must be >= 0", i)
		}
	}

	trading := false

	// Arbitrage
	if c.StrategyActive("arbitrage") {
		trading = true
		a := c.Arbitrage
		positive(add, "arbitrage: min_edge_percent", a.MinEdgePercent)
		positive(add, "arbitrage: min_profit", a.MinProfit)
		positive(add, "arbitrage: max_notional", a.MaxNotional)
		nonNegative(add, "arbitrage: fee_percent", a.FeePercent)
		nonNegative(add, "arbitrage: gas_cost", a.GasCost)
		nonNegative(add, "arbitrage: slippage_guard_percent", a.SlippageGuardPercent)
		if a.TopK < 1 {
			add("arbitrage: top_k must be >= 1")
		}
		pairs := make(map[string]int)
		for _, v := range c.Venues {
			pairs[v.Pair]++
		}
		shared := false
		for _, n := range pairs {
			if n >= 2 {
				shared = true
			}
		}
		if !shared {
			add("arbitrage: at least two venues must trade the same pair")
		}
	}

	// Market maker
	if c.StrategyActive("market_maker") {
		trading = true
		m := c.MarketMaker
		if len(m.Venues) == 0 {
			add("market_maker: venues must not be empty")
		}
		checkVenueRefs("market_maker", m.Venues)
		positive(add, "market_maker: base_spread_percent", m.BaseSpreadPercent)
		positive(add, "market_maker: quote_size", m.QuoteSize)
		if m.RefreshInterval.Duration <= 0 {
			add("market_maker: refresh_interval must be > 0")
		}
		nonNegative(add, "market_maker: max_inventory", m.MaxInventory)
		nonNegative(add, "market_maker: volatility_multiplier", m.VolatilityMultiplier)
		nonNegative(add, "market_maker: thin_depth", m.ThinDepth)
		nonNegative(add, "market_maker: thin_depth_percent", m.ThinDepthPercent)
		for i, sess := range m.Sessions {
			if sess.StartHour < 0 || sess.StartHour > 23 || sess.EndHour < 0 || sess.EndHour > 24 {
				add("market_maker: sessions[%d]: hours must be within 0-24", i)
			}
			nonNegative(add, fmt.Sprintf("market_maker: sessions[%d].spread_percent", i), sess.SpreadPercent)
		}
	}

	// Rebalance
	if c.StrategyActive("rebalance") {
		trading = true
		r := c.Rebalance
		if len(r.Buckets) == 0 {
			add("rebalance: buckets must not be empty")
		}
		total := decimal.Zero
		names := make(map[string]bool)
		for i, b := range r.Buckets {
			label := fmt.Sprintf("rebalance.buckets[%d]", i)
			if b.Name == "" {
				add("%s: name must not be empty", label)
			} else if names[b.Name] {
				add("%s: duplicate bucket %q", label, b.Name)
			}
			names[b.Name] = true
			checkVenueRefs(label, []string{b.Venue})
			if !b.TargetPercent.IsPositive() || b.TargetPercent.GreaterThan(decimal.NewFromInt(1)) {
				add("%s: target_percent must be in (0, 1]", label)
			}
			positive(add, label+": threshold_percent", b.ThresholdPercent)
			if b.Action != "market" && b.Action != "swap" {
				add("%s: action must be market or swap, got %q", label, b.Action)
			}
			total = total.Add(b.TargetPercent.Decimal)
		}
		if total.GreaterThan(decimal.NewFromInt(1)) {
			add("rebalance: target_percent values sum to %s, must be <= 1", total.String())
		}
		nonNegative(add, "rebalance: slippage_guard_percent", r.SlippageGuardPercent)
	}

	// Alerts
	if c.StrategyActive("alerts") {
		checkVenueRefs("alerts", c.Alerts.Venues)
		ascending(add, "alerts.price", c.Alerts.Price)
		ascending(add, "alerts.spread", c.Alerts.Spread)
		ascending(add, "alerts.depth", c.Alerts.Depth)
		if c.Alerts.DepthLevels < 1 {
			add("alerts: depth_levels must be >= 1")
		}
	}

	// Liquidation
	if c.StrategyActive("liquidation") {
		if len(c.Liquidation.Venues) == 0 {
			add("liquidation: venues must not be empty")
		}
		checkVenueRefs("liquidation", c.Liquidation.Venues)
		h := c.Liquidation.Health
		positive(add, "liquidation.health: critical", h.Critical)
		if h.High.LessThan(h.Critical.Decimal) || h.Medium.LessThan(h.High.Decimal) {
			add("liquidation.health: breakpoints must descend (medium >= high >= critical)")
		}
	}

	// Risk
	if trading {
		rk := c.Risk
		positive(add, "risk: max_position_size", rk.MaxPositionSize)
		nonNegative(add, "risk: min_profit", rk.MinProfit)
		positive(add, "risk: stop_loss", rk.StopLoss)
		if !rk.MinFillRatio.IsPositive() || rk.MinFillRatio.GreaterThan(decimal.NewFromInt(1)) {
			add("risk: min_fill_ratio must be in (0, 1]")
		}
		positive(add, "risk: max_slippage_percent", rk.MaxSlippagePercent)
		nonNegative(add, "risk: max_aggregate_exposure", rk.MaxAggregateExposure)
		switch rk.SharedBudget {
		case "local":
		case "redis":
			if !c.Redis.Enabled {
				add("risk: shared_budget redis requires redis.enabled")
			}
		default:
			add("risk: unknown shared_budget %q (valid: local, redis)", rk.SharedBudget)
		}
		if needsKey && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			add("wallet: private_key or encrypted_key_path must be set for live rest venues")
		}
	}
	if c.Wallet.ChainID <= 0 {
		add("wallet: chain_id must be > 0")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		add("wallet: key_password is required when encrypted_key_path is set")
	}

	// Retention
	if c.Retention.AlertMaxAge.Duration <= 0 {
		add("retention: alert_max_age must be > 0")
	}
	if c.Retention.MaxTradeRecords < 1 {
		add("retention: max_trade_records must be >= 1")
	}
	if c.Retention.MaxRejections < 1 {
		add("retention: max_rejections must be >= 1")
	}
	if c.Retention.ArchiveTrimmed && !c.S3.Enabled {
		add("retention: archive_trimmed requires s3.enabled")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		p := c.Postgres
		if strings.TrimSpace(p.DSN) == "" {
			if p.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if p.Port <= 0 || p.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", p.Port)
			}
			if p.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if p.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if p.PoolMinConns < 0 || p.PoolMinConns > p.PoolMaxConns {
			add("postgres: pool_min_conns must be within 0..pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			add("s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server: rate_limit must be >= 0, got %d", c.Server.RateLimit)
	}

	// Notify
	if !validSeverities[strings.ToLower(c.Notify.MinSeverity)] {
		add("notify: unknown min_severity %q", c.Notify.MinSeverity)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func positive(add func(string, ...any), field string, d Decimal) {
	if !d.IsPositive() {
		add("%s must be > 0", field)
	}
}

func nonNegative(add func(string, ...any), field string, d Decimal) {
	if d.IsNegative() {
		add("%s must be >= 0", field)
	}
}

func ascending(add func(string, ...any), section string, b Breakpoints) {
	positive(add, section+": medium", b.Medium)
	if b.High.LessThan(b.Medium.Decimal) || b.Critical.LessThan(b.High.Decimal) {
		add("%s: breakpoints must ascend (medium <= high <= critical)", section)
	}
}

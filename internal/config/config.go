// Package config defines the configuration of a venuebot instance and the
// validation that must pass before the tick loop starts.
//
// Ratios such as fees, spreads, edges and thresholds are fractions:
// 0.005 means 0.5%.
package config

import (
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// or YAML file and then optionally overridden by VENUEBOT_* environment
// variables.
type Config struct {
	Mode        string            `toml:"mode" yaml:"mode"`
	LogLevel    string            `toml:"log_level" yaml:"log_level"`
	DryRun      bool              `toml:"dry_run" yaml:"dry_run"`
	Scheduler   SchedulerConfig   `toml:"scheduler" yaml:"scheduler"`
	Venues      []VenueConfig     `toml:"venues" yaml:"venues"`
	Portfolio   PortfolioConfig   `toml:"portfolio" yaml:"portfolio"`
	Arbitrage   ArbitrageConfig   `toml:"arbitrage" yaml:"arbitrage"`
	MarketMaker MarketMakerConfig `toml:"market_maker" yaml:"market_maker"`
	Rebalance   RebalanceConfig   `toml:"rebalance" yaml:"rebalance"`
	Alerts      AlertsConfig      `toml:"alerts" yaml:"alerts"`
	Liquidation LiquidationConfig `toml:"liquidation" yaml:"liquidation"`
	Risk        RiskConfig        `toml:"risk" yaml:"risk"`
	Retention   RetentionConfig   `toml:"retention" yaml:"retention"`
	Wallet      WalletConfig      `toml:"wallet" yaml:"wallet"`
	Redis       RedisConfig       `toml:"redis" yaml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres" yaml:"postgres"`
	S3          S3Config          `toml:"s3" yaml:"s3"`
	Server      ServerConfig      `toml:"server" yaml:"server"`
	Notify      NotifyConfig      `toml:"notify" yaml:"notify"`
}

// SchedulerConfig controls the tick loop.
type SchedulerConfig struct {
	TickInterval  duration `toml:"tick_interval" yaml:"tick_interval"`
	VenueTimeout  duration `toml:"venue_timeout" yaml:"venue_timeout"`
	SubmitTimeout duration `toml:"submit_timeout" yaml:"submit_timeout"`
	ErrorBackoff  duration `toml:"error_backoff" yaml:"error_backoff"`
	MaxParallel   int      `toml:"max_parallel" yaml:"max_parallel"`
	BookDepth     int      `toml:"book_depth" yaml:"book_depth"`
	// VenueFailureAlertTicks is the number of consecutive failed fetches
	// after which a venue_unavailable alert is raised.
	VenueFailureAlertTicks int      `toml:"venue_failure_alert_ticks" yaml:"venue_failure_alert_ticks"`
	HistoryWindow          duration `toml:"history_window" yaml:"history_window"`
}

// VenueConfig describes one monitored venue.
type VenueConfig struct {
	ID      string `toml:"id" yaml:"id"`
	Adapter string `toml:"adapter" yaml:"adapter"` // "rest" or "paper"
	Pair    string `toml:"pair" yaml:"pair"`
	BaseURL string `toml:"base_url" yaml:"base_url"`
	// Market is the venue-side market identifier; defaults to ID.
	Market     string `toml:"market" yaml:"market"`
	APIKey     string `toml:"api_key" yaml:"api_key"`
	APISecret  string `toml:"api_secret" yaml:"api_secret"`
	Passphrase string `toml:"passphrase" yaml:"passphrase"`
	// RateLimit is the maximum requests per second; 0 disables limiting.
	RateLimit int  `toml:"rate_limit" yaml:"rate_limit"`
	Health    bool `toml:"health" yaml:"health"`
	// PaperTakerFee is the fee fraction charged by paper fills.
	PaperTakerFee Decimal `toml:"paper_taker_fee" yaml:"paper_taker_fee"`
	// StreamURL is the venue's WebSocket book endpoint. Pushed books are
	// served while younger than StreamMaxAge, REST reads otherwise.
	StreamURL    string   `toml:"stream_url" yaml:"stream_url"`
	StreamMaxAge duration `toml:"stream_max_age" yaml:"stream_max_age"`
}

// PortfolioConfig seeds the State Store at startup.
type PortfolioConfig struct {
	Cash     Decimal         `toml:"cash" yaml:"cash"`
	Holdings []HoldingConfig `toml:"holdings" yaml:"holdings"`
}

// HoldingConfig is an initial position.
type HoldingConfig struct {
	Bucket     string  `toml:"bucket" yaml:"bucket"`
	Venue      string  `toml:"venue" yaml:"venue"`
	Size       Decimal `toml:"size" yaml:"size"`
	EntryPrice Decimal `toml:"entry_price" yaml:"entry_price"`
}

// ArbitrageConfig configures the cross-venue arbitrage detector.
type ArbitrageConfig struct {
	Enabled        bool    `toml:"enabled" yaml:"enabled"`
	MinEdgePercent Decimal `toml:"min_edge_percent" yaml:"min_edge_percent"`
	MinProfit      Decimal `toml:"min_profit" yaml:"min_profit"`
	// MaxNotional bounds each opportunity in quote currency.
	MaxNotional Decimal `toml:"max_notional" yaml:"max_notional"`
	// FeePercent is the estimated fee cost as a fraction of notional.
	FeePercent Decimal `toml:"fee_percent" yaml:"fee_percent"`
	// GasCost is a fixed cost per opportunity in quote currency.
	GasCost Decimal `toml:"gas_cost" yaml:"gas_cost"`
	TopK    int     `toml:"top_k" yaml:"top_k"`
	// SlippageGuardPercent widens each leg's limit price off the observed
	// depth-weighted price.
	SlippageGuardPercent Decimal `toml:"slippage_guard_percent" yaml:"slippage_guard_percent"`
}

// MarketMakerConfig configures the quote generator.
type MarketMakerConfig struct {
	Enabled           bool     `toml:"enabled" yaml:"enabled"`
	Venues            []string `toml:"venues" yaml:"venues"`
	BaseSpreadPercent Decimal  `toml:"base_spread_percent" yaml:"base_spread_percent"`
	QuoteSize         Decimal  `toml:"quote_size" yaml:"quote_size"`
	RefreshInterval   duration `toml:"refresh_interval" yaml:"refresh_interval"`
	// MaxInventory stops bidding (or offering) once the position reaches
	// it on that side. Zero disables the check.
	MaxInventory         Decimal         `toml:"max_inventory" yaml:"max_inventory"`
	VolatilityMultiplier Decimal         `toml:"volatility_multiplier" yaml:"volatility_multiplier"`
	DepthLevels          int             `toml:"depth_levels" yaml:"depth_levels"`
	ThinDepth            Decimal         `toml:"thin_depth" yaml:"thin_depth"`
	ThinDepthPercent     Decimal         `toml:"thin_depth_percent" yaml:"thin_depth_percent"`
	Sessions             []SessionConfig `toml:"sessions" yaml:"sessions"`
}

// SessionConfig widens quotes during a UTC hour range [StartHour, EndHour).
type SessionConfig struct {
	StartHour     int     `toml:"start_hour" yaml:"start_hour"`
	EndHour       int     `toml:"end_hour" yaml:"end_hour"`
	SpreadPercent Decimal `toml:"spread_percent" yaml:"spread_percent"`
}

// RebalanceConfig configures the rebalance planner.
type RebalanceConfig struct {
	Enabled              bool           `toml:"enabled" yaml:"enabled"`
	Buckets              []BucketConfig `toml:"buckets" yaml:"buckets"`
	SlippageGuardPercent Decimal        `toml:"slippage_guard_percent" yaml:"slippage_guard_percent"`
}

// BucketConfig is one rebalanced asset bucket.
type BucketConfig struct {
	Name             string  `toml:"name" yaml:"name"`
	Venue            string  `toml:"venue" yaml:"venue"`
	TargetPercent    Decimal `toml:"target_percent" yaml:"target_percent"`
	ThresholdPercent Decimal `toml:"threshold_percent" yaml:"threshold_percent"`
	Action           string  `toml:"action" yaml:"action"` // "market" or "swap"
}

// Breakpoints are the medium/high/critical severity thresholds of a metric.
type Breakpoints struct {
	Medium   Decimal `toml:"medium" yaml:"medium"`
	High     Decimal `toml:"high" yaml:"high"`
	Critical Decimal `toml:"critical" yaml:"critical"`
}

// AlertsConfig configures the threshold alerter.
type AlertsConfig struct {
	Enabled     bool        `toml:"enabled" yaml:"enabled"`
	Venues      []string    `toml:"venues" yaml:"venues"`
	Price       Breakpoints `toml:"price" yaml:"price"`
	Spread      Breakpoints `toml:"spread" yaml:"spread"`
	Depth       Breakpoints `toml:"depth" yaml:"depth"`
	DepthLevels int         `toml:"depth_levels" yaml:"depth_levels"`
}

// LiquidationConfig configures the liquidation scanner. Health breakpoints
// descend: medium >= high >= critical.
type LiquidationConfig struct {
	Enabled bool        `toml:"enabled" yaml:"enabled"`
	Venues  []string    `toml:"venues" yaml:"venues"`
	Health  Breakpoints `toml:"health" yaml:"health"`
}

// RiskConfig configures the risk gate and the shared exposure budget.
type RiskConfig struct {
	MaxPositionSize    Decimal `toml:"max_position_size" yaml:"max_position_size"`
	MinProfit          Decimal `toml:"min_profit" yaml:"min_profit"`
	StopLoss           Decimal `toml:"stop_loss" yaml:"stop_loss"`
	MinFillRatio       Decimal `toml:"min_fill_ratio" yaml:"min_fill_ratio"`
	MaxSlippagePercent Decimal `toml:"max_slippage_percent" yaml:"max_slippage_percent"`
	// MaxAggregateExposure caps notional reserved across every bot sharing
	// the budget. Zero disables the budget.
	MaxAggregateExposure Decimal  `toml:"max_aggregate_exposure" yaml:"max_aggregate_exposure"`
	SharedBudget         string   `toml:"shared_budget" yaml:"shared_budget"` // "local" or "redis"
	BudgetKey            string   `toml:"budget_key" yaml:"budget_key"`
	DedupTTL             duration `toml:"dedup_ttl" yaml:"dedup_ttl"`
}

// RetentionConfig bounds in-memory history.
type RetentionConfig struct {
	AlertMaxAge     duration `toml:"alert_max_age" yaml:"alert_max_age"`
	MaxTradeRecords int      `toml:"max_trade_records" yaml:"max_trade_records"`
	MaxRejections   int      `toml:"max_rejections" yaml:"max_rejections"`
	ArchiveTrimmed  bool     `toml:"archive_trimmed" yaml:"archive_trimmed"`
}

// WalletConfig holds the submission signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key" yaml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path" yaml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password" yaml:"key_password"`
	// ChainID is mixed into every submission digest.
	ChainID int64 `toml:"chain_id" yaml:"chain_id"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled"`
	Addr       string `toml:"addr" yaml:"addr"`
	Password   string `toml:"password" yaml:"password"`
	DB         int    `toml:"db" yaml:"db"`
	PoolSize   int    `toml:"pool_size" yaml:"pool_size"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled" yaml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	DSN           string `toml:"dsn" yaml:"dsn"`
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"`
	Database      string `toml:"database" yaml:"database"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	SSLMode       string `toml:"ssl_mode" yaml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns" yaml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns" yaml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations" yaml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled" yaml:"enabled"`
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	Region         string `toml:"region" yaml:"region"`
	Bucket         string `toml:"bucket" yaml:"bucket"`
	Prefix         string `toml:"prefix" yaml:"prefix"`
	AccessKey      string `toml:"access_key" yaml:"access_key"`
	SecretKey      string `toml:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl" yaml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style" yaml:"force_path_style"`
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled" yaml:"enabled"`
	Port        int      `toml:"port" yaml:"port"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// APIKey protects the /api routes; empty disables authentication.
	APIKey string `toml:"api_key" yaml:"api_key"`
	// RateLimit is requests per minute per client IP, shared through Redis
	// when it is enabled. Zero disables limiting.
	RateLimit int `toml:"rate_limit" yaml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token" yaml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id" yaml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url" yaml:"discord_webhook_url"`
	// MinSeverity is the lowest alert severity forwarded.
	MinSeverity string `toml:"min_severity" yaml:"min_severity"`
}

// Defaults returns a Config populated with infrastructure defaults. Strategy
// and risk thresholds have no defaults and must be set explicitly.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		DryRun:   true,
		Scheduler: SchedulerConfig{
			TickInterval:           duration{5 * time.Second},
			VenueTimeout:           duration{2 * time.Second},
			SubmitTimeout:          duration{30 * time.Second},
			ErrorBackoff:           duration{10 * time.Second},
			MaxParallel:            8,
			BookDepth:              20,
			VenueFailureAlertTicks: 3,
			HistoryWindow:          duration{15 * time.Minute},
		},
		Arbitrage: ArbitrageConfig{
			TopK: 3,
		},
		MarketMaker: MarketMakerConfig{
			DepthLevels: 5,
		},
		Alerts: AlertsConfig{
			DepthLevels: 5,
		},
		Risk: RiskConfig{
			SharedBudget: "local",
			BudgetKey:    "venuebot:exposure",
			DedupTTL:     duration{time.Minute},
		},
		Wallet: WalletConfig{
			ChainID: 1,
		},
		Retention: RetentionConfig{
			AlertMaxAge:     duration{24 * time.Hour},
			MaxTradeRecords: 10_000,
			MaxRejections:   1_000,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "venuebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "venuebot-archive",
			Prefix:         "archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			MinSeverity: "high",
		},
	}
}

// StrategyActive reports whether the named strategy runs under the current
// mode. Names: arbitrage, market_maker, rebalance, alerts, liquidation.
func (c *Config) StrategyActive(name string) bool {
	enabled := map[string]bool{
		"arbitrage":    c.Arbitrage.Enabled,
		"market_maker": c.MarketMaker.Enabled,
		"rebalance":    c.Rebalance.Enabled,
		"alerts":       c.Alerts.Enabled,
		"liquidation":  c.Liquidation.Enabled,
	}
	if !enabled[name] {
		return false
	}
	switch c.Mode {
	case "full":
		return true
	case "monitor":
		return name == "alerts" || name == "liquidation"
	default:
		return c.Mode == name
	}
}

// Venue returns the venue config with the given id.
func (c *Config) Venue(id string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.ID == id {
			return v, true
		}
	}
	return VenueConfig{}, false
}

// VenueIDs returns the configured venue ids in file order.
func (c *Config) VenueIDs() []string {
	ids := make([]string, 0, len(c.Venues))
	for _, v := range c.Venues {
		ids = append(ids, v.ID)
	}
	return ids
}

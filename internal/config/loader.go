package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment override.
const envPrefix = "VENUEBOT_"

// Load reads a TOML (or, by extension, YAML) configuration file at path,
// merges it on top of the built-in defaults, applies VENUEBOT_* environment
// variable overrides, and returns the final Config. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VENUEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Per-venue credentials use VENUEBOT_VENUE_<ID>_API_KEY and friends,
// with the id upper-cased and dashes replaced by underscores.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, envPrefix+"MODE")
	setStr(&cfg.LogLevel, envPrefix+"LOG_LEVEL")
	setBool(&cfg.DryRun, envPrefix+"DRY_RUN")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.TickInterval, envPrefix+"SCHEDULER_TICK_INTERVAL")
	setDuration(&cfg.Scheduler.VenueTimeout, envPrefix+"SCHEDULER_VENUE_TIMEOUT")
	setDuration(&cfg.Scheduler.SubmitTimeout, envPrefix+"SCHEDULER_SUBMIT_TIMEOUT")
	setDuration(&cfg.Scheduler.ErrorBackoff, envPrefix+"SCHEDULER_ERROR_BACKOFF")
	setInt(&cfg.Scheduler.MaxParallel, envPrefix+"SCHEDULER_MAX_PARALLEL")
	setInt(&cfg.Scheduler.BookDepth, envPrefix+"SCHEDULER_BOOK_DEPTH")
	setInt(&cfg.Scheduler.VenueFailureAlertTicks, envPrefix+"SCHEDULER_VENUE_FAILURE_ALERT_TICKS")

	// ── Venues ──
	for i := range cfg.Venues {
		v := &cfg.Venues[i]
		key := envPrefix + "VENUE_" + strings.ToUpper(strings.ReplaceAll(v.ID, "-", "_")) + "_"
		setStr(&v.BaseURL, key+"BASE_URL")
		setStr(&v.APIKey, key+"API_KEY")
		setStr(&v.APISecret, key+"API_SECRET")
		setStr(&v.Passphrase, key+"PASSPHRASE")
	}

	// ── Strategies ──
	setBool(&cfg.Arbitrage.Enabled, envPrefix+"ARBITRAGE_ENABLED")
	setDecimal(&cfg.Arbitrage.MinEdgePercent, envPrefix+"ARBITRAGE_MIN_EDGE_PERCENT")
	setDecimal(&cfg.Arbitrage.MinProfit, envPrefix+"ARBITRAGE_MIN_PROFIT")
	setDecimal(&cfg.Arbitrage.MaxNotional, envPrefix+"ARBITRAGE_MAX_NOTIONAL")
	setInt(&cfg.Arbitrage.TopK, envPrefix+"ARBITRAGE_TOP_K")
	setBool(&cfg.MarketMaker.Enabled, envPrefix+"MARKET_MAKER_ENABLED")
	setStringSlice(&cfg.MarketMaker.Venues, envPrefix+"MARKET_MAKER_VENUES")
	setDecimal(&cfg.MarketMaker.BaseSpreadPercent, envPrefix+"MARKET_MAKER_BASE_SPREAD_PERCENT")
	setDecimal(&cfg.MarketMaker.QuoteSize, envPrefix+"MARKET_MAKER_QUOTE_SIZE")
	setDuration(&cfg.MarketMaker.RefreshInterval, envPrefix+"MARKET_MAKER_REFRESH_INTERVAL")
	setBool(&cfg.Rebalance.Enabled, envPrefix+"REBALANCE_ENABLED")
	setBool(&cfg.Alerts.Enabled, envPrefix+"ALERTS_ENABLED")
	setBool(&cfg.Liquidation.Enabled, envPrefix+"LIQUIDATION_ENABLED")

	// ── Risk ──
	setDecimal(&cfg.Risk.MaxPositionSize, envPrefix+"RISK_MAX_POSITION_SIZE")
	setDecimal(&cfg.Risk.MinProfit, envPrefix+"RISK_MIN_PROFIT")
	setDecimal(&cfg.Risk.StopLoss, envPrefix+"RISK_STOP_LOSS")
	setDecimal(&cfg.Risk.MinFillRatio, envPrefix+"RISK_MIN_FILL_RATIO")
	setDecimal(&cfg.Risk.MaxSlippagePercent, envPrefix+"RISK_MAX_SLIPPAGE_PERCENT")
	setDecimal(&cfg.Risk.MaxAggregateExposure, envPrefix+"RISK_MAX_AGGREGATE_EXPOSURE")
	setStr(&cfg.Risk.SharedBudget, envPrefix+"RISK_SHARED_BUDGET")

	// ── Retention ──
	setDuration(&cfg.Retention.AlertMaxAge, envPrefix+"RETENTION_ALERT_MAX_AGE")
	setInt(&cfg.Retention.MaxTradeRecords, envPrefix+"RETENTION_MAX_TRADE_RECORDS")
	setInt(&cfg.Retention.MaxRejections, envPrefix+"RETENTION_MAX_REJECTIONS")
	setBool(&cfg.Retention.ArchiveTrimmed, envPrefix+"RETENTION_ARCHIVE_TRIMMED")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, envPrefix+"WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, envPrefix+"WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, envPrefix+"WALLET_KEY_PASSWORD")
	setInt64(&cfg.Wallet.ChainID, envPrefix+"WALLET_CHAIN_ID")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, envPrefix+"REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, envPrefix+"REDIS_ADDR")
	setStr(&cfg.Redis.Password, envPrefix+"REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, envPrefix+"REDIS_DB")
	setInt(&cfg.Redis.PoolSize, envPrefix+"REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, envPrefix+"REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, envPrefix+"REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, envPrefix+"POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, envPrefix+"POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, envPrefix+"POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, envPrefix+"POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, envPrefix+"POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, envPrefix+"POSTGRES_USER")
	setStr(&cfg.Postgres.Password, envPrefix+"POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, envPrefix+"POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, envPrefix+"POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, envPrefix+"POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, envPrefix+"POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, envPrefix+"S3_ENABLED")
	setStr(&cfg.S3.Endpoint, envPrefix+"S3_ENDPOINT")
	setStr(&cfg.S3.Region, envPrefix+"S3_REGION")
	setStr(&cfg.S3.Bucket, envPrefix+"S3_BUCKET")
	setStr(&cfg.S3.Prefix, envPrefix+"S3_PREFIX")
	setStr(&cfg.S3.AccessKey, envPrefix+"S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, envPrefix+"S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, envPrefix+"S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, envPrefix+"S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, envPrefix+"SERVER_ENABLED")
	setInt(&cfg.Server.Port, envPrefix+"SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, envPrefix+"SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, envPrefix+"SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, envPrefix+"SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, envPrefix+"NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, envPrefix+"NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, envPrefix+"NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.MinSeverity, envPrefix+"NOTIFY_MIN_SEVERITY")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setDecimal(dst *Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			dst.Decimal = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

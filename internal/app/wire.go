package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/venuebot/internal/blob/s3"
	"github.com/alanyoungcy/venuebot/internal/cache/memory"
	"github.com/alanyoungcy/venuebot/internal/cache/redis"
	"github.com/alanyoungcy/venuebot/internal/config"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/notify"
	"github.com/alanyoungcy/venuebot/internal/risk"
	"github.com/alanyoungcy/venuebot/internal/server/handler"
	"github.com/alanyoungcy/venuebot/internal/store/postgres"
)

// snapshotTTL bounds how long a published snapshot stays readable in Redis.
const snapshotTTL = 5 * time.Minute

// Dependencies bundles the infrastructure the tick loop and the status
// server are built on. Members backed by a disabled service are nil, except
// Limiter and Bus which fall back to in-process implementations.
type Dependencies struct {
	// Journals
	Journal domain.TradeJournal
	Alerts  domain.AlertJournal
	Audit   domain.AuditStore

	// Caches
	Redis   *redis.Client
	Cache   domain.SnapshotCache
	Limiter domain.RateLimiter
	Locks   *redis.LockManager
	Bus     domain.SignalBus

	// Blob storage
	Archiver domain.Archiver

	Notifier *notify.Notifier

	// Checks are run by /healthz.
	Checks map[string]handler.Check
}

// Wire connects every enabled backing service and returns the dependencies
// together with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Journal = postgres.NewTradeStore(pool)
		deps.Alerts = postgres.NewAlertStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.Cache = redis.NewSnapshotCache(redisClient, snapshotTTL)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient, 0)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.Limiter = memory.NewRateLimiter()
		deps.Bus = memory.NewSignalBus(0)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Checks["s3"] = s3Client.Health
		if cfg.Retention.ArchiveTrimmed {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Audit, cfg.S3.Prefix)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, notify.ParseSeverity(cfg.Notify.MinSeverity), logger)

	return deps, cleanup, nil
}

// budget returns the shared exposure budget, or nil when no ceiling is set.
func (d *Dependencies) budget(cfg *config.Config) domain.ExposureBudget {
	ceiling := cfg.Risk.MaxAggregateExposure.Decimal
	if !ceiling.IsPositive() {
		return nil
	}
	if cfg.Risk.SharedBudget == "redis" && d.Redis != nil {
		return redis.NewExposureBudget(d.Redis, d.Locks, cfg.Risk.BudgetKey, ceiling)
	}
	return risk.NewLocalBudget(ceiling)
}

package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotCache stores the latest snapshot per venue for external readers.
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap MarketSnapshot) error
	GetSnapshot(ctx context.Context, venueID string) (MarketSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// ExposureBudget is an aggregate notional ceiling shared by bot instances.
// Reserve fails with ErrBudgetExceeded when amount does not fit.
type ExposureBudget interface {
	Reserve(ctx context.Context, amount decimal.Decimal) error
	Release(ctx context.Context, amount decimal.Decimal) error
	Used(ctx context.Context) (decimal.Decimal, error)
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const budgetLockTTL = 5 * time.Second

// ExposureBudget implements domain.ExposureBudget for several bot instances
// sharing one aggregate notional ceiling. The used amount is a decimal
// string read and written under a distributed lock.
type ExposureBudget struct {
	c       *Client
	locks   *LockManager
	key     string
	ceiling decimal.Decimal
}

// NewExposureBudget creates a budget stored under key.
func NewExposureBudget(c *Client, locks *LockManager, key string, ceiling decimal.Decimal) *ExposureBudget {
	return &ExposureBudget{c: c, locks: locks, key: key, ceiling: ceiling}
}

// Reserve adds amount to the used total, failing with
// domain.ErrBudgetExceeded when the ceiling would be passed.
func (b *ExposureBudget) Reserve(ctx context.Context, amount decimal.Decimal) error {
	return b.update(ctx, func(used decimal.Decimal) (decimal.Decimal, error) {
		next := used.Add(amount)
		if next.GreaterThan(b.ceiling) {
			return used, fmt.Errorf("redis: reserve %s with %s of %s used: %w",
				amount.String(), used.String(), b.ceiling.String(), domain.ErrBudgetExceeded)
		}
		return next, nil
	})
}

// Release returns amount to the budget. The used total never goes below
// zero.
func (b *ExposureBudget) Release(ctx context.Context, amount decimal.Decimal) error {
	return b.update(ctx, func(used decimal.Decimal) (decimal.Decimal, error) {
		return decimal.Max(used.Sub(amount), decimal.Zero), nil
	})
}

// Used returns the reserved total.
func (b *ExposureBudget) Used(ctx context.Context) (decimal.Decimal, error) {
	return b.read(ctx)
}

func (b *ExposureBudget) update(ctx context.Context, fn func(used decimal.Decimal) (decimal.Decimal, error)) error {
	unlock, err := b.locks.AcquireWait(ctx, b.key, budgetLockTTL)
	if err != nil {
		return fmt.Errorf("redis: budget lock: %w", err)
	}
	defer unlock()

	used, err := b.read(ctx)
	if err != nil {
		return err
	}
	next, err := fn(used)
	if err != nil {
		return err
	}
	if err := b.c.rdb.Set(ctx, b.c.Key(b.key), next.String(), 0).Err(); err != nil {
		return fmt.Errorf("redis: budget write: %w", err)
	}
	return nil
}

func (b *ExposureBudget) read(ctx context.Context) (decimal.Decimal, error) {
	s, err := b.c.rdb.Get(ctx, b.c.Key(b.key)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: budget read: %w", err)
	}
	used, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: budget value %q: %w", s, err)
	}
	return used, nil
}

// Compile-time interface check.
var _ domain.ExposureBudget = (*ExposureBudget)(nil)

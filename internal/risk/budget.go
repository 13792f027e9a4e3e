package risk

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// LocalBudget is an in-process domain.ExposureBudget. A zero or negative
// ceiling disables it.
type LocalBudget struct {
	mu      sync.Mutex
	ceiling decimal.Decimal
	used    decimal.Decimal
}

// NewLocalBudget creates a LocalBudget with the given ceiling.
func NewLocalBudget(ceiling decimal.Decimal) *LocalBudget {
	return &LocalBudget{ceiling: ceiling}
}

// Reserve adds amount to the used exposure if it fits under the ceiling.
func (b *LocalBudget) Reserve(_ context.Context, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.used.Add(amount)
	if b.ceiling.IsPositive() && next.GreaterThan(b.ceiling) {
		return fmt.Errorf("risk: reserve %s (used %s of %s): %w", amount.String(), b.used.String(), b.ceiling.String(), domain.ErrBudgetExceeded)
	}
	b.used = next
	return nil
}

// Release returns amount to the budget, never going below zero.
func (b *LocalBudget) Release(_ context.Context, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.used = decimal.Max(decimal.Zero, b.used.Sub(amount))
	return nil
}

// Used returns the reserved exposure.
func (b *LocalBudget) Used(context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used, nil
}

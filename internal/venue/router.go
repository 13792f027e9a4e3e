// Package venue routes venue ids to the adapters that serve them.
package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Router implements domain.Venue and domain.HealthSource over a set of
// adapters, one per configured venue id.
type Router struct {
	mu       sync.RWMutex
	adapters map[string]domain.Venue
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{adapters: make(map[string]domain.Venue)}
}

// Register binds venueID to an adapter. Registering an id twice is an error.
func (r *Router) Register(venueID string, v domain.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[venueID]; ok {
		return fmt.Errorf("venue: register %s: %w", venueID, domain.ErrAlreadyExists)
	}
	r.adapters[venueID] = v
	return nil
}

// IDs returns the registered venue ids, sorted.
func (r *Router) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Router) adapter(venueID string) (domain.Venue, error) {
	r.mu.RLock()
	v, ok := r.adapters[venueID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("venue: %s: %w", venueID, domain.ErrUnknownVenue)
	}
	return v, nil
}

func (r *Router) OrderBook(ctx context.Context, venueID string, depth int) (domain.MarketSnapshot, error) {
	v, err := r.adapter(venueID)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return v.OrderBook(ctx, venueID, depth)
}

func (r *Router) Stats(ctx context.Context, venueID string) (domain.VenueStats, error) {
	v, err := r.adapter(venueID)
	if err != nil {
		return domain.VenueStats{}, err
	}
	return v.Stats(ctx, venueID)
}

func (r *Router) EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side domain.OrderSide) (domain.Conversion, error) {
	v, err := r.adapter(venueID)
	if err != nil {
		return domain.Conversion{}, err
	}
	return v.EstimateConversion(ctx, venueID, amountIn, side)
}

func (r *Router) Submit(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	v, err := r.adapter(a.VenueID)
	if err != nil {
		return nil, err
	}
	return v.Submit(ctx, a)
}

// AccountHealth forwards to the adapter when it implements
// domain.HealthSource and returns domain.ErrUnsupported otherwise.
func (r *Router) AccountHealth(ctx context.Context, venueID string) ([]domain.AccountHealth, error) {
	v, err := r.adapter(venueID)
	if err != nil {
		return nil, err
	}
	hs, ok := v.(domain.HealthSource)
	if !ok {
		return nil, fmt.Errorf("venue: %s: account health: %w", venueID, domain.ErrUnsupported)
	}
	return hs.AccountHealth(ctx, venueID)
}

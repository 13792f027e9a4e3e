// Package paper is a dry-run venue. Reads come from an upstream venue or a
// fixed book; market orders and swaps fill against the current book with
// the taker fee, and limit orders rest until cancelled.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
)

// Venue simulates execution for one or more venue ids.
type Venue struct {
	upstream domain.Venue
	takerFee decimal.Decimal
	depth    int
	now      func() time.Time

	mu      sync.Mutex
	books   map[string]domain.MarketSnapshot
	resting map[string]domain.Order
}

// New creates a paper venue reading from upstream. upstream may be nil when
// every book is supplied through SetBook.
func New(upstream domain.Venue, takerFee decimal.Decimal, depth int) *Venue {
	if depth <= 0 {
		depth = 20
	}
	return &Venue{
		upstream: upstream,
		takerFee: takerFee,
		depth:    depth,
		now:      time.Now,
		books:    make(map[string]domain.MarketSnapshot),
		resting:  make(map[string]domain.Order),
	}
}

// SetBook fixes the book served for snap.VenueID, overriding upstream.
func (v *Venue) SetBook(snap domain.MarketSnapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.books[snap.VenueID] = snap.Clone()
}

// Resting returns the simulated resting orders for venueID.
func (v *Venue) Resting(venueID string) []domain.Order {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []domain.Order
	for _, o := range v.resting {
		if o.VenueID == venueID {
			out = append(out, o)
		}
	}
	return out
}

func (v *Venue) OrderBook(ctx context.Context, venueID string, depth int) (domain.MarketSnapshot, error) {
	v.mu.Lock()
	snap, ok := v.books[venueID]
	v.mu.Unlock()
	if ok {
		out := snap.Clone()
		out.Timestamp = v.now()
		return out, nil
	}
	if v.upstream == nil {
		return domain.MarketSnapshot{}, fmt.Errorf("paper: %s: no book: %w", venueID, domain.ErrNotFound)
	}
	return v.upstream.OrderBook(ctx, venueID, depth)
}

func (v *Venue) Stats(ctx context.Context, venueID string) (domain.VenueStats, error) {
	if v.upstream != nil {
		stats, err := v.upstream.Stats(ctx, venueID)
		if err == nil {
			stats.Params.TakerFee = v.takerFee
			return stats, nil
		}
	}
	return domain.VenueStats{
		VenueID: venueID,
		Params:  domain.TradeParams{TakerFee: v.takerFee},
	}, nil
}

// AccountHealth is read from upstream; paper trading never changes account
// health.
func (v *Venue) AccountHealth(ctx context.Context, venueID string) ([]domain.AccountHealth, error) {
	hs, ok := v.upstream.(domain.HealthSource)
	if !ok {
		return nil, fmt.Errorf("paper: %s: account health: %w", venueID, domain.ErrUnsupported)
	}
	return hs.AccountHealth(ctx, venueID)
}

// EstimateConversion walks the book: a buy spends amountIn quote for base,
// a sell sells amountIn base for quote. The taker fee is taken from the
// output.
func (v *Venue) EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side domain.OrderSide) (domain.Conversion, error) {
	snap, err := v.OrderBook(ctx, venueID, v.depth)
	if err != nil {
		return domain.Conversion{}, err
	}
	one := decimal.NewFromInt(1)

	var out decimal.Decimal
	if side == domain.OrderSideSell {
		avg, err := analytics.FillPrice(snap.Bids, amountIn)
		if err != nil {
			return domain.Conversion{}, fmt.Errorf("paper: %s: %w", venueID, err)
		}
		out = amountIn.Mul(avg)
	} else {
		base, err := baseForQuote(snap.Asks, amountIn)
		if err != nil {
			return domain.Conversion{}, fmt.Errorf("paper: %s: %w", venueID, err)
		}
		out = base
	}
	out = out.Mul(one.Sub(v.takerFee))

	conv := domain.Conversion{AmountIn: amountIn, AmountOut: out}
	if amountIn.IsPositive() {
		conv.Rate = out.Div(amountIn)
	}
	return conv, nil
}

// baseForQuote is how much base quote buys walking asks best-first.
func baseForQuote(asks []domain.PriceLevel, quote decimal.Decimal) (decimal.Decimal, error) {
	remaining := quote
	base := decimal.Zero
	for _, lvl := range asks {
		if !remaining.IsPositive() {
			break
		}
		levelQuote := lvl.Price.Mul(lvl.Quantity)
		if levelQuote.GreaterThanOrEqual(remaining) {
			return base.Add(remaining.Div(lvl.Price)), nil
		}
		base = base.Add(lvl.Quantity)
		remaining = remaining.Sub(levelQuote)
	}
	if remaining.IsPositive() {
		return decimal.Zero, domain.ErrInsufficientLiquidity
	}
	return base, nil
}

// Submit simulates the action against the current book.
func (v *Venue) Submit(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	switch a.Kind {
	case domain.ActionCancel:
		v.mu.Lock()
		_, ok := v.resting[a.OrderID]
		delete(v.resting, a.OrderID)
		v.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("paper: cancel %s: %w", a.OrderID, domain.ErrNotFound)
		}
		return domain.Cancelled{Action: a.ID, OrderID: a.OrderID}, nil

	case domain.ActionLimit:
		o := domain.Order{
			ID:            uuid.NewString(),
			VenueID:       a.VenueID,
			Bucket:        a.Bucket,
			Side:          a.Side,
			Price:         a.LimitPrice,
			Size:          a.Size,
			ActionID:      a.ID,
			OpportunityID: a.OpportunityID(),
			PlacedAt:      v.now(),
		}
		v.mu.Lock()
		v.resting[o.ID] = o
		v.mu.Unlock()
		return domain.Resting{Order: o}, nil

	case domain.ActionMarket, domain.ActionSwap:
		return v.fill(ctx, a)
	}
	return nil, fmt.Errorf("paper: action kind %q: %w", a.Kind, domain.ErrUnsupported)
}

func (v *Venue) fill(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	snap, err := v.OrderBook(ctx, a.VenueID, v.depth)
	if err != nil {
		return nil, err
	}
	avg, err := analytics.FillPrice(snap.Levels(a.Side), a.Size)
	if err != nil {
		return nil, fmt.Errorf("paper: %s: %w: %w", a.VenueID, domain.ErrNotConfirmed, err)
	}

	notional := a.Size.Mul(avg)
	fees := notional.Mul(v.takerFee)
	if err := checkLimit(a, avg, notional, fees); err != nil {
		return nil, fmt.Errorf("paper: %s: %w: %w", a.VenueID, domain.ErrNotConfirmed, err)
	}

	return domain.Filled{Trade: domain.TradeRecord{
		ActionID:      a.ID,
		OpportunityID: a.OpportunityID(),
		Timestamp:     v.now(),
		VenueID:       a.VenueID,
		Bucket:        a.Bucket,
		Kind:          a.Kind,
		Side:          a.Side,
		Size:          a.Size,
		Price:         avg,
		Fees:          fees,
		Status:        domain.TradeConfirmed,
		TxRef:         "paper-" + uuid.NewString(),
	}}, nil
}

// checkLimit enforces the worst price of a market order and the minimum
// output of a swap. A zero limit accepts any price.
func checkLimit(a domain.Action, avg, notional, fees decimal.Decimal) error {
	if a.LimitPrice.IsZero() {
		return nil
	}
	if a.Kind == domain.ActionSwap {
		out := notional.Sub(fees)
		if a.Side == domain.OrderSideBuy {
			// Fees on a buy are charged in quote; base received is the size.
			out = a.Size
		}
		if out.LessThan(a.LimitPrice) {
			return fmt.Errorf("swap output %s below minimum %s", out.String(), a.LimitPrice.String())
		}
		return nil
	}
	if a.Side == domain.OrderSideBuy && avg.GreaterThan(a.LimitPrice) {
		return fmt.Errorf("fill %s above limit %s", avg.String(), a.LimitPrice.String())
	}
	if a.Side == domain.OrderSideSell && avg.LessThan(a.LimitPrice) {
		return fmt.Errorf("fill %s below limit %s", avg.String(), a.LimitPrice.String())
	}
	return nil
}

// Package state holds the bot's in-memory record of positions, cash, resting
// orders, alerts, trades and rejections for one running instance.
//
// A Store is owned by the tick loop and is not safe for concurrent use.
// Other goroutines read the deep copy returned by View.
package state

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// QuoterState is the per-venue market-making state.
type QuoterState string

const (
	QuoterIdle       QuoterState = "idle"
	QuoterQuoting    QuoterState = "quoting"
	QuoterRiskPaused QuoterState = "risk_paused"
)

// Reader is the read-only view detectors and the risk gate consume. Every
// method returns copies.
type Reader interface {
	Position(bucket string) (domain.Position, bool)
	Positions() []domain.Position
	Orders(venueID string) []domain.Order
	Quoter(venueID string) QuoterState
	Cash() decimal.Decimal
	TotalValue() decimal.Decimal
}

// Limits bounds retained history.
type Limits struct {
	AlertMaxAge   time.Duration
	MaxTrades     int
	MaxRejections int
}

// Store is the single-owner state of a bot instance.
type Store struct {
	limits     Limits
	cash       decimal.Decimal
	positions  map[string]*domain.Position
	orders     map[string]domain.Order
	quoters    map[string]QuoterState
	alerts     []domain.Alert
	trades     []domain.TradeRecord
	rejections []domain.Rejection
}

// New creates an empty Store holding cash.
func New(limits Limits, cash decimal.Decimal) *Store {
	return &Store{
		limits:    limits,
		cash:      cash,
		positions: make(map[string]*domain.Position),
		orders:    make(map[string]domain.Order),
		quoters:   make(map[string]QuoterState),
	}
}

// Bucket resolves the position bucket of an action or trade: the explicit
// bucket if set, otherwise the venue.
func Bucket(venueID, bucket string) string {
	if bucket != "" {
		return bucket
	}
	return venueID
}

// SeedPosition installs an opening position. It resets the bucket first,
// so the seed is the point the bucket's size is summed from.
func (s *Store) SeedPosition(bucket, venueID string, size, entryPrice decimal.Decimal, at time.Time) {
	p := s.position(bucket, venueID)
	s.ResetPosition(bucket)
	p.Size = size
	p.AverageEntryPrice = entryPrice
	p.MarkPrice = entryPrice
	p.UpdatedAt = at
}

// SetTarget records a bucket's target allocation, creating an empty
// position when none exists.
func (s *Store) SetTarget(bucket, venueID string, targetPercent decimal.Decimal) {
	s.position(bucket, venueID).TargetAllocationPercent = targetPercent
}

// ResetPosition zeroes a bucket's size, entry and PnL, keeping its venue
// and target allocation.
func (s *Store) ResetPosition(bucket string) {
	if p, ok := s.positions[bucket]; ok {
		target, venue := p.TargetAllocationPercent, p.VenueID
		*p = domain.Position{Bucket: bucket, VenueID: venue, TargetAllocationPercent: target}
	}
}

func (s *Store) position(bucket, venueID string) *domain.Position {
	p, ok := s.positions[bucket]
	if !ok {
		p = &domain.Position{Bucket: bucket, VenueID: venueID}
		s.positions[bucket] = p
	}
	if p.VenueID == "" {
		p.VenueID = venueID
	}
	return p
}

// ApplyTrade appends rec to the trade log. Confirmed records move the
// bucket's position and cash; failed records change nothing else. Records
// trimmed by retention are returned oldest first.
func (s *Store) ApplyTrade(rec domain.TradeRecord) []domain.TradeRecord {
	if rec.Status == domain.TradeConfirmed && rec.Kind != domain.ActionCancel {
		p := s.position(Bucket(rec.VenueID, rec.Bucket), rec.VenueID)
		applyFill(p, rec)

		notional := rec.Notional()
		if rec.Side == domain.OrderSideBuy {
			s.cash = s.cash.Sub(notional).Sub(rec.Fees)
		} else {
			s.cash = s.cash.Add(notional).Sub(rec.Fees)
		}
	}

	s.trades = append(s.trades, rec)
	if s.limits.MaxTrades <= 0 || len(s.trades) <= s.limits.MaxTrades {
		return nil
	}
	n := len(s.trades) - s.limits.MaxTrades
	trimmed := append([]domain.TradeRecord(nil), s.trades[:n]...)
	s.trades = append(s.trades[:0:0], s.trades[n:]...)
	return trimmed
}

// applyFill moves p by a confirmed trade: increases re-weight the average
// entry, reductions realize PnL against it, and a flip opens the remainder
// at the trade price.
func applyFill(p *domain.Position, rec domain.TradeRecord) {
	old := p.Size
	delta := rec.SignedSize()
	next := old.Add(delta)

	if old.IsZero() || old.Sign() == delta.Sign() {
		cost := old.Abs().Mul(p.AverageEntryPrice).Add(rec.Size.Mul(rec.Price))
		if !next.IsZero() {
			p.AverageEntryPrice = cost.Div(next.Abs())
		}
	} else {
		closed := decimal.Min(delta.Abs(), old.Abs())
		pnl := rec.Price.Sub(p.AverageEntryPrice).Mul(closed)
		if old.IsNegative() {
			pnl = pnl.Neg()
		}
		p.RealizedPnL = p.RealizedPnL.Add(pnl)
		switch {
		case next.IsZero():
			p.AverageEntryPrice = decimal.Zero
		case next.Sign() != old.Sign():
			p.AverageEntryPrice = rec.Price
		}
	}

	p.RealizedPnL = p.RealizedPnL.Sub(rec.Fees)
	p.Size = next
	if p.MarkPrice.IsZero() {
		p.MarkPrice = rec.Price
	}
	p.UnrealizedPnL = unrealized(*p)
	p.UpdatedAt = rec.Timestamp
}

func unrealized(p domain.Position) decimal.Decimal {
	if p.Size.IsZero() || p.MarkPrice.IsZero() {
		return decimal.Zero
	}
	return p.MarkPrice.Sub(p.AverageEntryPrice).Mul(p.Size)
}

// MarkToMarket re-marks every position on a venue present in marks. Size
// and realized PnL are untouched.
func (s *Store) MarkToMarket(marks map[string]decimal.Decimal, at time.Time) {
	for _, p := range s.positions {
		price, ok := marks[p.VenueID]
		if !ok || !price.IsPositive() {
			continue
		}
		p.MarkPrice = price
		p.UnrealizedPnL = unrealized(*p)
		p.UpdatedAt = at
	}
}

// Position returns a copy of the bucket's position.
func (s *Store) Position(bucket string) (domain.Position, bool) {
	p, ok := s.positions[bucket]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Positions returns copies of all positions ordered by bucket.
func (s *Store) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}

// Cash returns the free quote balance.
func (s *Store) Cash() decimal.Decimal {
	return s.cash
}

// TotalValue is cash plus every position at its mark.
func (s *Store) TotalValue() decimal.Decimal {
	total := s.cash
	for _, p := range s.positions {
		total = total.Add(p.Value())
	}
	return total
}

// AddOrder records a resting order.
func (s *Store) AddOrder(o domain.Order) {
	s.orders[o.ID] = o
}

// RemoveOrder forgets a resting order, reporting whether it was known.
func (s *Store) RemoveOrder(id string) bool {
	if _, ok := s.orders[id]; !ok {
		return false
	}
	delete(s.orders, id)
	return true
}

// Orders returns the venue's resting orders, oldest first. An empty venueID
// returns every order.
func (s *Store) Orders(venueID string) []domain.Order {
	var out []domain.Order
	for _, o := range s.orders {
		if venueID == "" || o.VenueID == venueID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out
}

// Quoter returns the venue's quoting state, Idle when never set.
func (s *Store) Quoter(venueID string) QuoterState {
	if st, ok := s.quoters[venueID]; ok {
		return st
	}
	return QuoterIdle
}

// SetQuoter moves the venue's quoter to st and returns the previous state.
func (s *Store) SetQuoter(venueID string, st QuoterState) QuoterState {
	prev := s.Quoter(venueID)
	s.quoters[venueID] = st
	return prev
}

// RaiseAlert creates an alert, or, when an unacknowledged and unexpired
// alert with the same category and venue exists, updates it in place.
// escalated is true when the severity went up.
func (s *Store) RaiseAlert(now time.Time, category, venueID string, sev domain.Severity, msg string) (alert domain.Alert, created, escalated bool) {
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.Category != category || a.VenueID != venueID || a.Acknowledged {
			continue
		}
		if s.expired(*a, now) {
			continue
		}
		escalated = sev > a.Severity
		a.Severity = sev
		a.Message = msg
		a.UpdatedAt = now
		a.Occurrences++
		return *a, false, escalated
	}

	a := domain.Alert{
		ID:          uuid.NewString(),
		Timestamp:   now,
		UpdatedAt:   now,
		Category:    category,
		VenueID:     venueID,
		Severity:    sev,
		Message:     msg,
		Occurrences: 1,
	}
	s.alerts = append(s.alerts, a)
	return a, true, false
}

// AckAlert marks an alert acknowledged.
func (s *Store) AckAlert(id string) error {
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
			return nil
		}
	}
	return fmt.Errorf("state: ack alert %s: %w", id, domain.ErrNotFound)
}

// ExpireAlerts drops alerts older than the retention age, acknowledged or
// not, and returns how many were dropped.
func (s *Store) ExpireAlerts(now time.Time) int {
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if !s.expired(a, now) {
			kept = append(kept, a)
		}
	}
	dropped := len(s.alerts) - len(kept)
	clear(s.alerts[len(kept):])
	s.alerts = kept
	return dropped
}

func (s *Store) expired(a domain.Alert, now time.Time) bool {
	return s.limits.AlertMaxAge > 0 && a.Expired(now, s.limits.AlertMaxAge)
}

// Alerts returns a copy of the retained alerts, oldest first.
func (s *Store) Alerts() []domain.Alert {
	return append([]domain.Alert(nil), s.alerts...)
}

// RecordRejection appends a rejection audit entry, assigning an id when
// missing, and trims the log to its bound.
func (s *Store) RecordRejection(r domain.Rejection) domain.Rejection {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.rejections = append(s.rejections, r)
	if limit := s.limits.MaxRejections; limit > 0 && len(s.rejections) > limit {
		s.rejections = append(s.rejections[:0:0], s.rejections[len(s.rejections)-limit:]...)
	}
	return r
}

// Trades returns a copy of the retained trade log, oldest first.
func (s *Store) Trades() []domain.TradeRecord {
	return append([]domain.TradeRecord(nil), s.trades...)
}

// Rejections returns a copy of the retained rejections, oldest first.
func (s *Store) Rejections() []domain.Rejection {
	return append([]domain.Rejection(nil), s.rejections...)
}

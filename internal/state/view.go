package state

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// View is a point-in-time deep copy of a Store, safe to hand to other
// goroutines.
type View struct {
	TakenAt    time.Time              `json:"taken_at"`
	Cash       decimal.Decimal        `json:"cash"`
	TotalValue decimal.Decimal        `json:"total_value"`
	Positions  []domain.Position      `json:"positions"`
	Orders     []domain.Order         `json:"orders"`
	Quoters    map[string]QuoterState `json:"quoters"`
	Alerts     []domain.Alert         `json:"alerts"`
	Trades     []domain.TradeRecord   `json:"trades"`
	Rejections []domain.Rejection     `json:"rejections"`
}

// View copies the store.
func (s *Store) View(at time.Time) *View {
	quoters := make(map[string]QuoterState, len(s.quoters))
	for k, v := range s.quoters {
		quoters[k] = v
	}
	return &View{
		TakenAt:    at,
		Cash:       s.cash,
		TotalValue: s.TotalValue(),
		Positions:  s.Positions(),
		Orders:     s.Orders(""),
		Quoters:    quoters,
		Alerts:     s.Alerts(),
		Trades:     s.Trades(),
		Rejections: s.Rejections(),
	}
}

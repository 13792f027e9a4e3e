package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MidPoint records one mid-price observation.
type MidPoint struct {
	Mid  decimal.Decimal
	Time time.Time
}

// History keeps a sliding window of mid prices per venue. Spread adjusters
// read it; the scheduler feeds it once per tick.
type History struct {
	points    map[string][]MidPoint
	window    time.Duration
	maxPoints int
	mu        sync.RWMutex
}

// NewHistory creates a History that keeps at most maxPoints observations no
// older than window per venue.
func NewHistory(window time.Duration, maxPoints int) *History {
	if maxPoints <= 0 {
		maxPoints = 256
	}
	return &History{
		points:    make(map[string][]MidPoint),
		window:    window,
		maxPoints: maxPoints,
	}
}

// Track records a mid price and trims points outside the window.
func (h *History) Track(venueID string, mid decimal.Decimal, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pts := append(h.points[venueID], MidPoint{Mid: mid, Time: ts})
	cutoff := ts.Add(-h.window)
	i := 0
	for i < len(pts) && (pts[i].Time.Before(cutoff) || len(pts)-i > h.maxPoints) {
		i++
	}
	h.points[venueID] = pts[i:]
}

// Points returns a copy of the venue's window, oldest first.
func (h *History) Points(venueID string) []MidPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.points[venueID]
	if len(src) == 0 {
		return nil
	}
	out := make([]MidPoint, len(src))
	copy(out, src)
	return out
}

// Volatility returns the population standard deviation of tick-over-tick
// mid returns in the window, as a fraction. Fewer than three points yields
// zero.
func (h *History) Volatility(venueID string) decimal.Decimal {
	return ReturnVolatility(h.Points(venueID))
}

// ReturnVolatility is the population standard deviation of simple returns
// between consecutive points.
func ReturnVolatility(pts []MidPoint) decimal.Decimal {
	if len(pts) < 3 {
		return decimal.Zero
	}
	returns := make([]decimal.Decimal, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		prev := pts[i-1].Mid
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, pts[i].Mid.Sub(prev).Div(prev))
	}
	if len(returns) < 2 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(len(returns)))
	sum := decimal.Zero
	for _, r := range returns {
		sum = sum.Add(r)
	}
	mean := sum.Div(n)
	variance := decimal.Zero
	for _, r := range returns {
		d := r.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)
	// decimal has no square root; the float result only scales a spread.
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

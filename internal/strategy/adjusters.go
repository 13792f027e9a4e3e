package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
)

// SpreadAdjuster returns an additive spread adjustment, as a fraction of
// mid, for one venue. Adjusters read the tick and the snapshot history.
type SpreadAdjuster interface {
	Name() string
	Adjust(venueID string, tick Tick) decimal.Decimal
}

// VolatilityAdjuster widens the spread by Multiplier times the venue's
// recent mid-return volatility.
type VolatilityAdjuster struct {
	Multiplier decimal.Decimal
}

func (VolatilityAdjuster) Name() string { return "volatility" }

func (v VolatilityAdjuster) Adjust(venueID string, tick Tick) decimal.Decimal {
	if tick.History == nil || !v.Multiplier.IsPositive() {
		return decimal.Zero
	}
	return tick.History.Volatility(venueID).Mul(v.Multiplier)
}

// DepthAdjuster adds Extra when the smaller side's cumulative quantity over
// the top Levels is below Thin.
type DepthAdjuster struct {
	Levels int
	Thin   decimal.Decimal
	Extra  decimal.Decimal
}

func (DepthAdjuster) Name() string { return "depth" }

func (d DepthAdjuster) Adjust(venueID string, tick Tick) decimal.Decimal {
	snap, ok := tick.Snapshots[venueID]
	if !ok || !d.Thin.IsPositive() {
		return decimal.Zero
	}
	bids := analytics.CumulativeDepth(snap.Bids, d.Levels)
	asks := analytics.CumulativeDepth(snap.Asks, d.Levels)
	if decimal.Min(bids, asks).LessThan(d.Thin) {
		return d.Extra
	}
	return decimal.Zero
}

// Session is a UTC hour range [StartHour, EndHour) with its extra spread.
// A range with StartHour > EndHour wraps midnight.
type Session struct {
	StartHour int
	EndHour   int
	Extra     decimal.Decimal
}

func (s Session) contains(hour int) bool {
	if s.StartHour <= s.EndHour {
		return hour >= s.StartHour && hour < s.EndHour
	}
	return hour >= s.StartHour || hour < s.EndHour
}

// TimeOfDayAdjuster adds the extra spread of every session containing the
// tick time.
type TimeOfDayAdjuster struct {
	Sessions []Session
}

func (TimeOfDayAdjuster) Name() string { return "time_of_day" }

func (t TimeOfDayAdjuster) Adjust(_ string, tick Tick) decimal.Decimal {
	hour := tick.Now.UTC().Hour()
	total := decimal.Zero
	for _, s := range t.Sessions {
		if s.contains(hour) {
			total = total.Add(s.Extra)
		}
	}
	return total
}

package strategy

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// quotePrecision is the number of decimal places quotes are rounded to.
const quotePrecision = 8

// QuotingConfig configures the market-making quote generator.
type QuotingConfig struct {
	Venues            []string
	BaseSpreadPercent decimal.Decimal
	QuoteSize         decimal.Decimal
	RefreshInterval   time.Duration
	// MaxInventory stops quoting the side that would grow the position past
	// it. Zero disables the check.
	MaxInventory decimal.Decimal
}

// Quoting places a bid and an ask around mid on each configured venue.
// Resting quotes older than twice the refresh interval are cancelled; when
// a refresh is due every resting quote is replaced. Cancels always precede
// the new quotes in the proposal.
type Quoting struct {
	cfg       QuotingConfig
	adjusters []SpreadAdjuster
	logger    *slog.Logger
}

// NewQuoting creates a Quoting detector with the given spread adjusters.
func NewQuoting(cfg QuotingConfig, adjusters []SpreadAdjuster, logger *slog.Logger) *Quoting {
	return &Quoting{
		cfg:       cfg,
		adjusters: adjusters,
		logger:    logger.With(slog.String("strategy", "quoting")),
	}
}

// Name returns the detector identifier.
func (q *Quoting) Name() string { return "quoting" }

// Detect returns at most one QuoteRefresh proposal per venue.
func (q *Quoting) Detect(ctx context.Context, tick Tick, st state.Reader) ([]domain.Proposal, error) {
	venues := append([]string(nil), q.cfg.Venues...)
	if len(venues) == 0 {
		for id := range tick.Snapshots {
			venues = append(venues, id)
		}
	}
	sort.Strings(venues)

	var proposals []domain.Proposal
	for _, venueID := range venues {
		snap, ok := tick.Snapshots[venueID]
		if !ok || snap.Stale || !snap.MidPrice.IsPositive() {
			continue
		}
		if p, ok := q.quote(ctx, snap, tick, st); ok {
			proposals = append(proposals, p)
		}
	}
	return proposals, nil
}

// TotalSpread is the base spread plus every adjuster's contribution.
func (q *Quoting) TotalSpread(venueID string, tick Tick) decimal.Decimal {
	total := q.cfg.BaseSpreadPercent
	for _, adj := range q.adjusters {
		total = total.Add(adj.Adjust(venueID, tick))
	}
	return total
}

func (q *Quoting) quote(ctx context.Context, snap domain.MarketSnapshot, tick Tick, st state.Reader) (domain.Proposal, bool) {
	orders := st.Orders(snap.VenueID)

	staleAfter := 2 * q.cfg.RefreshInterval
	var stale []domain.Order
	due := true
	for _, o := range orders {
		age := o.Age(tick.Now)
		if age > staleAfter {
			stale = append(stale, o)
			continue
		}
		if age < q.cfg.RefreshInterval {
			due = false
		}
	}
	// A due refresh replaces every resting quote, so quotes never stack.
	if due {
		stale = orders
	}
	if !due && len(stale) == 0 {
		return domain.Proposal{}, false
	}

	spread := q.TotalSpread(snap.VenueID, tick)
	half := snap.MidPrice.Mul(spread).Div(decimal.NewFromInt(2))
	opp := domain.QuoteRefresh{
		Meta:          newMeta(tick.Now),
		VenueID:       snap.VenueID,
		Mid:           snap.MidPrice,
		SpreadPercent: spread,
		Bid:           snap.MidPrice.Sub(half).Round(quotePrecision),
		Ask:           snap.MidPrice.Add(half).Round(quotePrecision),
		Size:          q.cfg.QuoteSize,
	}
	for _, o := range stale {
		opp.Cancel = append(opp.Cancel, o.ID)
	}

	actions := make([]domain.Action, 0, len(stale)+2)
	for _, o := range stale {
		c := newAction(domain.ActionCancel, snap.VenueID, opp, tick.Now)
		c.OrderID = o.ID
		c.Side = o.Side
		c.Bucket = o.Bucket
		actions = append(actions, c)
	}

	if due {
		pos, _ := st.Position(state.Bucket(snap.VenueID, ""))
		if q.canQuote(domain.OrderSideBuy, pos.Size) && opp.Bid.IsPositive() {
			actions = append(actions, q.limit(opp, domain.OrderSideBuy, opp.Bid, tick.Now))
		}
		if q.canQuote(domain.OrderSideSell, pos.Size) {
			actions = append(actions, q.limit(opp, domain.OrderSideSell, opp.Ask, tick.Now))
		}
	}
	if len(actions) == 0 {
		return domain.Proposal{}, false
	}

	q.logger.DebugContext(ctx, "quoting: refresh",
		slog.String("venue", snap.VenueID),
		slog.String("mid", snap.MidPrice.String()),
		slog.String("spread", spread.String()),
		slog.Int("cancels", len(stale)),
	)
	return domain.Proposal{Opportunity: opp, Actions: actions, Score: decimal.Zero}, true
}

func (q *Quoting) limit(opp domain.QuoteRefresh, side domain.OrderSide, price decimal.Decimal, now time.Time) domain.Action {
	a := newAction(domain.ActionLimit, opp.VenueID, opp, now)
	a.Side = side
	a.Size = q.cfg.QuoteSize
	a.LimitPrice = price
	return a
}

// canQuote reports whether a quote on side keeps inventory within bounds.
func (q *Quoting) canQuote(side domain.OrderSide, position decimal.Decimal) bool {
	if !q.cfg.MaxInventory.IsPositive() {
		return true
	}
	if side == domain.OrderSideBuy {
		return position.LessThan(q.cfg.MaxInventory)
	}
	return position.GreaterThan(q.cfg.MaxInventory.Neg())
}

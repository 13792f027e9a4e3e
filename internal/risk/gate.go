// Package risk decides whether a proposed Action may be executed.
package risk

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// Config holds the gate's limits. Amounts are in quote currency except
// MaxPositionSize, which is in base units; ratios are fractions.
type Config struct {
	MaxPositionSize    decimal.Decimal
	MinProfit          decimal.Decimal
	StopLoss           decimal.Decimal
	MinFillRatio       decimal.Decimal
	MaxSlippagePercent decimal.Decimal
}

// Gate evaluates Actions against the current state and the tick's
// snapshots. Checks run in order and stop at the first failure:
//
//  1. resulting position size within MaxPositionSize
//  2. estimated net benefit above MinProfit
//  3. bucket loss has not reached StopLoss
//  4. size at least the venue's minimum order size, when the snapshot
//     carries trading terms
//  5. achievable fill ratio at least MinFillRatio
//  6. depth-weighted price within MaxSlippagePercent of mid
//
// Cancels are always approved. Limit orders skip checks 5 and 6. Checks 1
// and 3 only apply when the action grows the position.
type Gate struct {
	cfg    Config
	logger *slog.Logger
}

// NewGate creates a Gate.
func NewGate(cfg Config, logger *slog.Logger) *Gate {
	return &Gate{cfg: cfg, logger: logger.With(slog.String("component", "risk"))}
}

// Evaluate returns domain.Approved or domain.Rejected for a.
func (g *Gate) Evaluate(a domain.Action, st state.Reader, snaps map[string]domain.MarketSnapshot) domain.Verdict {
	v := g.evaluate(a, st, snaps)
	if r, ok := v.(domain.Rejected); ok {
		g.logger.Info("action rejected",
			slog.String("action_id", a.ID),
			slog.String("opportunity_id", a.OpportunityID()),
			slog.String("venue", a.VenueID),
			slog.String("reason", string(r.Reason)),
			slog.String("detail", r.Detail),
		)
	}
	return v
}

func (g *Gate) evaluate(a domain.Action, st state.Reader, snaps map[string]domain.MarketSnapshot) domain.Verdict {
	if a.Kind == domain.ActionCancel {
		return domain.Approved{}
	}

	pos, _ := st.Position(state.Bucket(a.VenueID, a.Bucket))
	current := pos.Size
	resulting := current.Add(a.SignedSize())
	grows := resulting.Abs().GreaterThan(current.Abs())

	// 1. Position size.
	if grows && resulting.Abs().GreaterThan(g.cfg.MaxPositionSize) {
		return domain.Rejected{
			Reason: domain.RejectPositionLimit,
			Detail: fmt.Sprintf("resulting position %s exceeds max %s", resulting.String(), g.cfg.MaxPositionSize.String()),
		}
	}

	// 2. Net benefit.
	if a.Opportunity == nil {
		return domain.Rejected{Reason: domain.RejectMinProfit, Detail: "action has no opportunity"}
	}
	if benefit, gated := a.Opportunity.NetBenefit(); gated && !benefit.GreaterThan(g.cfg.MinProfit) {
		return domain.Rejected{
			Reason: domain.RejectMinProfit,
			Detail: fmt.Sprintf("net benefit %s does not exceed minimum %s", benefit.StringFixed(2), g.cfg.MinProfit.String()),
		}
	}

	// 3. Stop loss.
	if grows && g.cfg.StopLoss.IsPositive() {
		if loss := pos.TotalPnL().Neg(); loss.GreaterThanOrEqual(g.cfg.StopLoss) {
			return domain.Rejected{
				Reason: domain.RejectStopLoss,
				Detail: fmt.Sprintf("bucket %s loss %s reached stop %s", pos.Bucket, loss.StringFixed(2), g.cfg.StopLoss.String()),
			}
		}
	}

	snap, ok := snaps[a.VenueID]

	// 4. Minimum order size.
	if ok && snap.Params != nil && snap.Params.MinOrderSize.IsPositive() && a.Size.LessThan(snap.Params.MinOrderSize) {
		return domain.Rejected{
			Reason: domain.RejectMinOrderSize,
			Detail: fmt.Sprintf("size %s below venue minimum %s", a.Size.String(), snap.Params.MinOrderSize.String()),
		}
	}

	if a.Kind == domain.ActionLimit {
		return domain.Approved{}
	}

	if !ok || snap.Stale {
		return domain.Rejected{Reason: domain.RejectNoSnapshot, Detail: "no fresh snapshot for " + a.VenueID}
	}

	// 5. Liquidity.
	achieved, avg := analytics.DepthWeightedPrice(snap.Levels(a.Side), a.Size)
	if a.Size.IsPositive() {
		if ratio := achieved.Div(a.Size); ratio.LessThan(g.cfg.MinFillRatio) {
			return domain.Rejected{
				Reason: domain.RejectLiquidity,
				Detail: fmt.Sprintf("book absorbs %s of %s (ratio %s < %s)", achieved.String(), a.Size.String(),
					ratio.StringFixed(4), g.cfg.MinFillRatio.String()),
			}
		}
	}

	// 6. Slippage.
	if g.cfg.MaxSlippagePercent.IsPositive() && avg.IsPositive() {
		if slip := analytics.SlippagePercent(avg, snap.MidPrice); slip.GreaterThan(g.cfg.MaxSlippagePercent) {
			return domain.Rejected{
				Reason: domain.RejectSlippage,
				Detail: fmt.Sprintf("depth price %s is %s from mid %s", avg.StringFixed(6), slip.StringFixed(6), snap.MidPrice.String()),
			}
		}
	}

	return domain.Approved{}
}

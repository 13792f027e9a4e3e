// Package executor submits approved Actions to venues and folds the outcomes
// into the State Store.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/state"
)

// Options wires the optional collaborators of a Dispatcher. Nil members are
// skipped.
type Options struct {
	SubmitTimeout time.Duration
	DedupTTL      time.Duration
	Budget        domain.ExposureBudget
	Journal       domain.TradeJournal
	Audit         domain.AuditStore
	Bus           domain.SignalBus
	Archiver      domain.Archiver
	Now           func() time.Time
}

// Dispatcher executes one Action at a time on behalf of the tick loop.
// State is only changed by confirmed outcomes: a failed submission is
// journaled as a failed TradeRecord and nothing else moves.
type Dispatcher struct {
	venue  domain.Venue
	store  *state.Store
	opts   Options
	dedup  *Dedup
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher that submits through venue and records
// into store.
func NewDispatcher(venue domain.Venue, store *state.Store, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		venue:  venue,
		store:  store,
		opts:   opts,
		dedup:  NewDedup(opts.DedupTTL),
		logger: logger.With(slog.String("component", "executor")),
	}
}

// Execute submits a and returns its outcome. Submission failures come back
// as a domain.Failed outcome with a nil error. A non-nil error is always a
// domain.Rejected raised before submission (duplicate action or exhausted
// exposure budget).
func (d *Dispatcher) Execute(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	now := d.opts.Now()
	log := d.logger.With(
		slog.String("action_id", a.ID),
		slog.String("opportunity_id", a.OpportunityID()),
		slog.String("venue", a.VenueID),
		slog.String("kind", string(a.Kind)),
	)

	if d.dedup.Seen(a.ID, now) {
		log.Debug("action deduplicated, skipping")
		return nil, domain.Rejected{Reason: domain.RejectDuplicate, Detail: "action " + a.ID + " already submitted"}
	}

	reserved, err := d.reserve(ctx, a)
	if err != nil {
		detail := err.Error()
		if !errors.Is(err, domain.ErrBudgetExceeded) {
			detail = "budget unavailable: " + detail
		}
		return nil, domain.Rejected{Reason: domain.RejectBudget, Detail: detail}
	}

	sctx, cancel := d.submitContext(ctx)
	out, err := d.venue.Submit(sctx, a)
	cancel()
	if err == nil && out == nil {
		err = domain.ErrNotConfirmed
	}
	if err != nil {
		return d.fail(ctx, a, reserved, err, log), nil
	}

	switch o := out.(type) {
	case domain.Filled:
		rec := d.normalize(a, o.Trade, now)
		if rec.Status != domain.TradeConfirmed {
			return d.fail(ctx, a, reserved, fmt.Errorf("%w: status %q", domain.ErrNotConfirmed, rec.Status), log), nil
		}
		d.confirm(ctx, a, rec, log)
		return domain.Filled{Trade: rec}, nil

	case domain.Resting:
		order := o.Order
		if order.ID == "" {
			return d.fail(ctx, a, reserved, fmt.Errorf("%w: resting order without id", domain.ErrNotConfirmed), log), nil
		}
		order.VenueID = a.VenueID
		order.Bucket = state.Bucket(a.VenueID, a.Bucket)
		order.ActionID = a.ID
		order.OpportunityID = a.OpportunityID()
		if order.PlacedAt.IsZero() {
			order.PlacedAt = now
		}
		d.store.AddOrder(order)
		d.publish(ctx, domain.ChannelTrades, "order_resting", order)
		log.Info("order resting", slog.String("order_id", order.ID), slog.String("price", order.Price.String()))
		return domain.Resting{Order: order}, nil

	case domain.Cancelled:
		orderID := o.OrderID
		if orderID == "" {
			orderID = a.OrderID
		}
		d.store.RemoveOrder(orderID)
		d.publish(ctx, domain.ChannelTrades, "order_cancelled", map[string]string{"order_id": orderID, "action_id": a.ID})
		log.Info("order cancelled", slog.String("order_id", orderID))
		return domain.Cancelled{Action: a.ID, OrderID: orderID}, nil

	case domain.Failed:
		reason := o.Trade.Reason
		if reason == "" {
			reason = "venue reported failure"
		}
		return d.fail(ctx, a, reserved, fmt.Errorf("%w: %s", domain.ErrNotConfirmed, reason), log), nil

	default:
		return d.fail(ctx, a, reserved, fmt.Errorf("%w: unexpected outcome %T", domain.ErrNotConfirmed, out), log), nil
	}
}

// Cleanup forgets expired dedup entries.
func (d *Dispatcher) Cleanup() int {
	return d.dedup.Cleanup(d.opts.Now())
}

func (d *Dispatcher) submitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opts.SubmitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.opts.SubmitTimeout)
}

// reserve takes exposure budget for taker actions that grow the bucket's
// position. It returns the amount reserved.
func (d *Dispatcher) reserve(ctx context.Context, a domain.Action) (decimal.Decimal, error) {
	if d.opts.Budget == nil || a.Kind == domain.ActionCancel || a.Kind == domain.ActionLimit {
		return decimal.Zero, nil
	}
	if !d.grows(a) {
		return decimal.Zero, nil
	}
	amount := notional(a)
	if err := d.opts.Budget.Reserve(ctx, amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (d *Dispatcher) grows(a domain.Action) bool {
	pos, _ := d.store.Position(state.Bucket(a.VenueID, a.Bucket))
	return pos.Size.Add(a.SignedSize()).Abs().GreaterThan(pos.Size.Abs())
}

// notional estimates an action's quote value.
func notional(a domain.Action) decimal.Decimal {
	if r, ok := a.Opportunity.(domain.Rebalance); ok {
		return r.Amount
	}
	return a.Size.Mul(a.LimitPrice)
}

func (d *Dispatcher) release(ctx context.Context, amount decimal.Decimal, log *slog.Logger) {
	if d.opts.Budget == nil || !amount.IsPositive() {
		return
	}
	if err := d.opts.Budget.Release(ctx, amount); err != nil {
		log.Warn("budget release failed", slog.String("amount", amount.String()), slog.String("error", err.Error()))
	}
}

// normalize fills the identity fields of an adapter's trade record.
func (d *Dispatcher) normalize(a domain.Action, rec domain.TradeRecord, now time.Time) domain.TradeRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.ActionID = a.ID
	rec.OpportunityID = a.OpportunityID()
	rec.VenueID = a.VenueID
	rec.Bucket = state.Bucket(a.VenueID, a.Bucket)
	rec.Kind = a.Kind
	if rec.Side == "" {
		rec.Side = a.Side
	}
	return rec
}

func (d *Dispatcher) confirm(ctx context.Context, a domain.Action, rec domain.TradeRecord, log *slog.Logger) {
	shrinks := !d.grows(a)
	trimmed := d.store.ApplyTrade(rec)
	if shrinks {
		d.release(ctx, rec.Notional(), log)
	}

	log.Info("trade confirmed",
		slog.String("trade_id", rec.ID),
		slog.String("side", string(rec.Side)),
		slog.String("size", rec.Size.String()),
		slog.String("price", rec.Price.String()),
		slog.String("fees", rec.Fees.String()),
	)
	d.journal(ctx, rec, log)
	d.publish(ctx, domain.ChannelTrades, "trade", rec)
	d.archive(ctx, trimmed, log)
}

// fail records an unconfirmed execution. Position and cash are untouched.
func (d *Dispatcher) fail(ctx context.Context, a domain.Action, reserved decimal.Decimal, cause error, log *slog.Logger) domain.Outcome {
	d.release(ctx, reserved, log)

	rec := d.normalize(a, domain.TradeRecord{
		Side:   a.Side,
		Size:   a.Size,
		Price:  a.LimitPrice,
		Fees:   decimal.Zero,
		Status: domain.TradeFailed,
		Reason: cause.Error(),
	}, d.opts.Now())
	trimmed := d.store.ApplyTrade(rec)

	log.Error("execution failed", slog.String("error", cause.Error()), slog.String("rationale", a.Rationale()))
	d.journal(ctx, rec, log)
	if d.opts.Audit != nil {
		if err := d.opts.Audit.Log(ctx, "execution_failed", map[string]any{
			"action_id":      a.ID,
			"opportunity_id": a.OpportunityID(),
			"venue":          a.VenueID,
			"kind":           string(a.Kind),
			"reason":         cause.Error(),
			"rationale":      a.Rationale(),
		}); err != nil {
			log.Warn("audit log failed", slog.String("error", err.Error()))
		}
	}
	d.publish(ctx, domain.ChannelTrades, "trade_failed", rec)
	d.archive(ctx, trimmed, log)
	return domain.Failed{Trade: rec}
}

func (d *Dispatcher) journal(ctx context.Context, rec domain.TradeRecord, log *slog.Logger) {
	if d.opts.Journal == nil {
		return
	}
	if err := d.opts.Journal.InsertTrades(ctx, []domain.TradeRecord{rec}); err != nil {
		log.Warn("trade journal insert failed", slog.String("trade_id", rec.ID), slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) publish(ctx context.Context, channel, kind string, payload any) {
	if d.opts.Bus == nil {
		return
	}
	data, err := json.Marshal(domain.Event{Type: kind, Time: d.opts.Now(), Payload: payload})
	if err != nil {
		return
	}
	if err := d.opts.Bus.Publish(ctx, channel, data); err != nil {
		d.logger.WarnContext(ctx, "publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
	if channel == domain.ChannelTrades {
		if err := d.opts.Bus.StreamAppend(ctx, domain.StreamTrades, data); err != nil {
			d.logger.WarnContext(ctx, "stream append failed", slog.String("error", err.Error()))
		}
	}
}

func (d *Dispatcher) archive(ctx context.Context, trimmed []domain.TradeRecord, log *slog.Logger) {
	if len(trimmed) == 0 || d.opts.Archiver == nil {
		return
	}
	path, err := d.opts.Archiver.ArchiveTrades(ctx, trimmed)
	if err != nil {
		log.Warn("archiving trimmed trades failed", slog.Int("count", len(trimmed)), slog.String("error", err.Error()))
		return
	}
	log.Info("archived trimmed trades", slog.Int("count", len(trimmed)), slog.String("path", path))
}

// Package scheduler runs the tick loop: fetch snapshots, run detectors,
// gate their proposals, dispatch what was approved and publish a read-only
// view of the state. The loop goroutine is the only writer of the State
// Store; everything else reads the published view.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/venuebot/internal/aggregator"
	"github.com/alanyoungcy/venuebot/internal/analytics"
	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/risk"
	"github.com/alanyoungcy/venuebot/internal/state"
	"github.com/alanyoungcy/venuebot/internal/strategy"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Run before the first tick when the loop
// cannot start.
var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

// Alert categories raised by the loop itself.
const (
	CategoryVenueUnavailable = "venue_unavailable"
	CategoryLiquidation      = "liquidation"
)

// Fetcher produces one round of snapshots.
type Fetcher interface {
	Fetch(ctx context.Context) (aggregator.Result, error)
}

// Executor dispatches approved actions.
type Executor interface {
	Execute(ctx context.Context, a domain.Action) (domain.Outcome, error)
	Cleanup() int
}

// AlertNotifier forwards new or escalated alerts to operators.
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, a domain.Alert) error
}

// Config controls the loop.
type Config struct {
	TickInterval time.Duration
	ErrorBackoff time.Duration
	// VenueFailureAlertTicks raises venue_unavailable once a venue has
	// failed this many ticks in a row. Zero disables the alert.
	VenueFailureAlertTicks int
}

// Options wires the optional collaborators. Nil members are skipped.
type Options struct {
	History  *analytics.History
	Cache    domain.SnapshotCache
	Alerts   domain.AlertJournal
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Notifier AlertNotifier
	Now      func() time.Time
}

// Scheduler owns the tick loop.
type Scheduler struct {
	cfg      Config
	fetcher  Fetcher
	registry *strategy.Registry
	gate     *risk.Gate
	exec     Executor
	store    *state.Store
	opts     Options
	logger   *slog.Logger

	seq     int64
	skipped atomic.Int64
	view    atomic.Pointer[state.View]
	stats   atomic.Pointer[domain.TickStats]
	acks    chan string
}

// New creates a Scheduler. store must not be written by anything else once
// Run starts.
func New(cfg Config, fetcher Fetcher, registry *strategy.Registry, gate *risk.Gate, exec Executor, store *state.Store, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = cfg.TickInterval
	}
	if opts.History == nil {
		opts.History = analytics.NewHistory(15*time.Minute, 0)
	}
	s := &Scheduler{
		cfg:      cfg,
		fetcher:  fetcher,
		registry: registry,
		gate:     gate,
		exec:     exec,
		store:    store,
		opts:     opts,
		logger:   logger.With(slog.String("component", "scheduler")),
		acks:     make(chan string, 64),
	}
	s.view.Store(store.View(opts.Now()))
	s.stats.Store(&domain.TickStats{})
	return s
}

// View returns the state published after the last completed tick. The
// returned value is shared and must not be modified.
func (s *Scheduler) View() *state.View {
	return s.view.Load()
}

// Stats returns the summary of the last completed tick.
func (s *Scheduler) Stats() domain.TickStats {
	return *s.stats.Load()
}

// Skipped returns the number of ticks skipped because a tick overran.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Detectors returns per-detector run statistics.
func (s *Scheduler) Detectors() []strategy.DetectorInfo {
	return s.registry.ListInfo()
}

// Ack queues an alert acknowledgement; the loop applies it at the start of
// the next tick. Ids unknown to the published view return
// domain.ErrNotFound.
func (s *Scheduler) Ack(id string) error {
	found := false
	for _, a := range s.View().Alerts {
		if a.ID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("scheduler: ack %s: %w", id, domain.ErrNotFound)
	}
	select {
	case s.acks <- id:
		return nil
	default:
		return fmt.Errorf("scheduler: ack %s: queue full: %w", id, domain.ErrRateLimited)
	}
}

// Run ticks until ctx is done. A tick that overruns its interval completes;
// the intervals it covered are skipped, never queued. A failed tick is
// followed by ErrorBackoff instead of the interval.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %s", ErrInvalidConfig, s.cfg.TickInterval)
	}

	s.logger.Info("scheduler starting",
		slog.Duration("tick_interval", s.cfg.TickInterval),
		slog.Duration("error_backoff", s.cfg.ErrorBackoff),
		slog.Int("detectors", len(s.registry.Detectors())),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}

		started := time.Now()
		stats := s.Tick(ctx)
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		wait := s.cfg.TickInterval
		if stats.Err != "" {
			wait = s.cfg.ErrorBackoff
		} else if elapsed := time.Since(started); elapsed > wait {
			missed := int64(elapsed / wait)
			s.skipped.Add(missed)
			s.logger.Warn("tick overran interval",
				slog.Int64("seq", stats.Seq),
				slog.Duration("elapsed", elapsed),
				slog.Int64("skipped", missed),
			)
			wait -= elapsed % wait
		} else {
			wait -= elapsed
		}
		timer.Reset(wait)
	}
}

// Tick runs one full cycle and returns its stats. Partial progress (trades
// already executed) is kept when the tick fails.
func (s *Scheduler) Tick(ctx context.Context) domain.TickStats {
	s.seq++
	start := time.Now()
	now := s.opts.Now()
	stats := domain.TickStats{Seq: s.seq, StartedAt: now, Skipped: s.skipped.Load()}
	log := s.logger.With(slog.Int64("seq", s.seq))

	err := s.tick(ctx, now, &stats, log)
	if err != nil {
		stats.Err = err.Error()
		log.Error("tick failed", slog.String("error", err.Error()))
	}

	s.store.ExpireAlerts(now)
	s.exec.Cleanup()
	stats.Duration = time.Since(start)

	s.view.Store(s.store.View(now))
	s.stats.Store(&stats)
	s.publish(ctx, domain.ChannelTicks, "tick", stats)

	log.Debug("tick complete",
		slog.Int("venues", stats.Venues),
		slog.Int("proposals", stats.Proposals),
		slog.Int("executed", stats.Executed),
		slog.Int("rejected", stats.Rejected),
	)
	return stats
}

func (s *Scheduler) tick(ctx context.Context, now time.Time, stats *domain.TickStats, log *slog.Logger) error {
	s.drainAcks(log)

	res, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshots: %w", err)
	}
	stats.Venues = len(res.Snapshots)
	stats.Discarded = res.Discarded()
	stats.Failed = len(res.Failures) - stats.Discarded

	s.observe(ctx, now, res, log)

	tick := strategy.Tick{
		Seq:        s.seq,
		Now:        now,
		Snapshots:  res.Snapshots,
		Previous:   res.Previous,
		Health:     res.Health,
		PrevHealth: res.PrevHealth,
		History:    s.opts.History,
	}
	proposals, detectErr := s.detect(ctx, tick, log)
	stats.Proposals = len(proposals)

	for _, p := range proposals {
		if len(p.Actions) == 0 {
			s.alertFor(ctx, now, p.Opportunity)
			continue
		}
		s.handle(ctx, now, p, res.Snapshots, stats, log)
	}

	if detectErr != nil {
		return detectErr
	}
	if stats.Venues == 0 && len(res.Failures) > 0 {
		return fmt.Errorf("no venue answered: %d failures", len(res.Failures))
	}
	return nil
}

func (s *Scheduler) drainAcks(log *slog.Logger) {
	for {
		select {
		case id := <-s.acks:
			if err := s.store.AckAlert(id); err != nil {
				log.Warn("alert ack dropped", slog.String("alert_id", id), slog.String("error", err.Error()))
			}
		default:
			return
		}
	}
}

// observe feeds history, marks positions, caches snapshots and raises
// venue_unavailable alerts.
func (s *Scheduler) observe(ctx context.Context, now time.Time, res aggregator.Result, log *slog.Logger) {
	marks := make(map[string]decimal.Decimal, len(res.Snapshots))
	for id, snap := range res.Snapshots {
		s.opts.History.Track(id, snap.MidPrice, snap.Timestamp)
		marks[id] = snap.MidPrice
		if s.opts.Cache != nil {
			if err := s.opts.Cache.SetSnapshot(ctx, snap); err != nil {
				log.Warn("snapshot cache write failed", slog.String("venue", id), slog.String("error", err.Error()))
			}
		}
	}
	s.store.MarkToMarket(marks, now)

	for _, f := range res.Failures {
		if f.Integrity || s.cfg.VenueFailureAlertTicks <= 0 || f.Consecutive < s.cfg.VenueFailureAlertTicks {
			continue
		}
		sev := domain.SeverityHigh
		if f.Consecutive >= 2*s.cfg.VenueFailureAlertTicks {
			sev = domain.SeverityCritical
		}
		msg := fmt.Sprintf("venue %s failed %d consecutive ticks: %v", f.VenueID, f.Consecutive, f.Err)
		s.raiseAlert(ctx, now, CategoryVenueUnavailable, f.VenueID, sev, msg)
	}
}

// detect runs every registered detector. A failing detector does not stop
// the others; the first error is returned after all have run.
func (s *Scheduler) detect(ctx context.Context, tick strategy.Tick, log *slog.Logger) ([]domain.Proposal, error) {
	var all []domain.Proposal
	var firstErr error
	for _, d := range s.registry.Detectors() {
		props, err := d.Detect(ctx, tick, s.store)
		s.registry.Record(d.Name(), tick.Now, len(props), err)
		if err != nil {
			log.Error("detector failed", slog.String("strategy", d.Name()), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("detector %s: %w", d.Name(), err)
			}
			continue
		}
		all = append(all, props...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score.GreaterThan(all[j].Score)
	})
	return all, firstErr
}

// alertFor turns an action-less proposal into an alert.
func (s *Scheduler) alertFor(ctx context.Context, now time.Time, opp domain.Opportunity) {
	switch o := opp.(type) {
	case domain.ThresholdBreach:
		s.raiseAlert(ctx, now, string(o.Metric), o.VenueID, o.Severity, o.Summary())
	case domain.LiquidationCandidate:
		s.raiseAlert(ctx, now, CategoryLiquidation, o.VenueID, o.Severity, o.Summary())
	}
}

func (s *Scheduler) raiseAlert(ctx context.Context, now time.Time, category, venueID string, sev domain.Severity, msg string) {
	alert, created, escalated := s.store.RaiseAlert(now, category, venueID, sev, msg)
	if !created && !escalated {
		return
	}
	log := s.logger.With(slog.String("alert_id", alert.ID), slog.String("category", category), slog.String("venue", venueID))
	log.Warn("alert raised", slog.String("severity", sev.String()), slog.Bool("escalated", escalated), slog.String("message", msg))

	if s.opts.Alerts != nil {
		if err := s.opts.Alerts.UpsertAlert(ctx, alert); err != nil {
			log.Error("alert journal write failed", slog.String("error", err.Error()))
		}
	}
	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.NotifyAlert(ctx, alert); err != nil {
			log.Error("alert notification failed", slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, domain.ChannelAlerts, "alert", alert)
}

// handle gates every action of p before dispatching any. Cancels always
// pass; a rejected non-cancel action drops all non-cancel actions of p.
func (s *Scheduler) handle(ctx context.Context, now time.Time, p domain.Proposal, snaps map[string]domain.MarketSnapshot, stats *domain.TickStats, log *slog.Logger) {
	verdicts := make([]domain.Verdict, len(p.Actions))
	var rejected []domain.Rejected
	for i, a := range p.Actions {
		verdicts[i] = s.gate.Evaluate(a, s.store, snaps)
		if r, ok := verdicts[i].(domain.Rejected); ok {
			rejected = append(rejected, r)
		}
	}
	s.updateQuoter(p, rejected, log)

	blocked := len(rejected) > 0
	for i, a := range p.Actions {
		if a.Kind == domain.ActionCancel {
			continue
		}
		switch v := verdicts[i].(type) {
		case domain.Rejected:
			s.reject(ctx, now, a, v)
			stats.Rejected++
		default:
			if blocked {
				s.reject(ctx, now, a, domain.Rejected{Reason: domain.RejectPeerRejected, Detail: "another action of the proposal was rejected"})
				stats.Rejected++
			}
		}
	}

	halted := false
	for _, a := range p.Actions {
		cancel := a.Kind == domain.ActionCancel
		if !cancel && (blocked || halted) {
			if halted {
				s.reject(ctx, now, a, domain.Rejected{Reason: domain.RejectPeerRejected, Detail: "an earlier action of the proposal did not execute"})
				stats.Rejected++
			}
			continue
		}
		stats.Approved++

		out, err := s.exec.Execute(ctx, a)
		var rej domain.Rejected
		switch {
		case errors.As(err, &rej):
			s.reject(ctx, now, a, rej)
			stats.Rejected++
			halted = halted || !cancel
		case err != nil:
			log.Error("execute failed", slog.String("action_id", a.ID), slog.String("error", err.Error()))
			stats.ExecFailed++
			halted = halted || !cancel
		default:
			if _, failed := out.(domain.Failed); failed {
				stats.ExecFailed++
				halted = halted || !cancel
				continue
			}
			stats.Executed++
		}
	}
}

// updateQuoter moves a venue's quoter between Quoting and RiskPaused.
func (s *Scheduler) updateQuoter(p domain.Proposal, rejected []domain.Rejected, log *slog.Logger) {
	q, ok := p.Opportunity.(domain.QuoteRefresh)
	if !ok {
		return
	}
	next := state.QuoterQuoting
	for _, r := range rejected {
		if r.Reason == domain.RejectPositionLimit || r.Reason == domain.RejectStopLoss {
			next = state.QuoterRiskPaused
			break
		}
	}
	if len(rejected) > 0 && next != state.QuoterRiskPaused {
		return
	}
	if prev := s.store.SetQuoter(q.VenueID, next); prev != next {
		log.Info("quoter state changed",
			slog.String("venue", q.VenueID),
			slog.String("from", string(prev)),
			slog.String("to", string(next)),
		)
	}
}

func (s *Scheduler) reject(ctx context.Context, now time.Time, a domain.Action, r domain.Rejected) {
	rec := domain.Rejection{
		Timestamp:     now,
		ActionID:      a.ID,
		OpportunityID: a.OpportunityID(),
		VenueID:       a.VenueID,
		Reason:        r.Reason,
		Detail:        r.Detail,
	}
	if a.Opportunity != nil {
		rec.OpportunityKind = a.Opportunity.Kind()
	}
	rec = s.store.RecordRejection(rec)

	if s.opts.Audit != nil {
		err := s.opts.Audit.Log(ctx, "rejection", map[string]any{
			"rejection_id":   rec.ID,
			"action_id":      rec.ActionID,
			"opportunity_id": rec.OpportunityID,
			"venue":          rec.VenueID,
			"reason":         string(rec.Reason),
			"detail":         rec.Detail,
			"rationale":      a.Rationale(),
		})
		if err != nil {
			s.logger.Error("audit write failed", slog.String("action_id", a.ID), slog.String("error", err.Error()))
		}
	}
	s.publish(ctx, domain.ChannelRejections, "rejection", rec)
}

func (s *Scheduler) publish(ctx context.Context, channel, kind string, payload any) {
	if s.opts.Bus == nil {
		return
	}
	data, err := json.Marshal(domain.Event{Type: kind, Time: s.opts.Now(), Payload: payload})
	if err != nil {
		s.logger.Error("event marshal failed", slog.String("type", kind), slog.String("error", err.Error()))
		return
	}
	if err := s.opts.Bus.Publish(ctx, channel, data); err != nil {
		s.logger.Warn("event publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

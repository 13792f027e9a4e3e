// Package notify forwards alerts to chat channels. Every sender receives
// the same Message; the Notifier drops alerts below its minimum severity.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// Message is one rendered notification.
type Message struct {
	Title    string
	Body     string
	Severity domain.Severity
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders.
type Notifier struct {
	senders     []Sender
	minSeverity domain.Severity
	logger      *slog.Logger
}

// NewNotifier creates a Notifier forwarding alerts at or above minSeverity.
func NewNotifier(senders []Sender, minSeverity domain.Severity, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:     senders,
		minSeverity: minSeverity,
		logger:      logger.With(slog.String("component", "notifier")),
	}
}

// ParseSeverity maps a config name to a severity. Unknown names are high.
func ParseSeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return domain.SeverityLow
	case "medium":
		return domain.SeverityMedium
	case "critical":
		return domain.SeverityCritical
	default:
		return domain.SeverityHigh
	}
}

// NotifyAlert sends a new or escalated alert.
func (n *Notifier) NotifyAlert(ctx context.Context, a domain.Alert) error {
	if a.Severity < n.minSeverity {
		n.logger.DebugContext(ctx, "alert below notify threshold",
			slog.String("alert_id", a.ID),
			slog.String("severity", a.Severity.String()),
		)
		return nil
	}
	msg := Message{
		Title:    fmt.Sprintf("[%s] %s %s", strings.ToUpper(a.Severity.String()), a.Category, a.VenueID),
		Body:     a.Message,
		Severity: a.Severity,
	}
	if a.Occurrences > 1 {
		msg.Body = fmt.Sprintf("%s (seen %d times)", a.Message, a.Occurrences)
	}
	return n.dispatch(ctx, msg)
}

// dispatch sends msg to every sender. A single sender failure does not
// prevent delivery to the others; failures are combined into one error.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", msg.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

// PortfolioHandler serves positions, alerts, trades and rejections from
// the published state view.
type PortfolioHandler struct {
	src     Source
	journal domain.TradeJournal
	logger  *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler. journal may be nil.
func NewPortfolioHandler(src Source, journal domain.TradeJournal, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{src: src, journal: journal, logger: logger.With(slog.String("handler", "portfolio"))}
}

// Positions returns every position with cash and total value.
// GET /api/positions
func (h *PortfolioHandler) Positions(w http.ResponseWriter, r *http.Request) {
	view := h.src.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"taken_at":    view.TakenAt,
		"cash":        view.Cash,
		"total_value": view.TotalValue,
		"positions":   view.Positions,
		"orders":      view.Orders,
	})
}

// Alerts returns alerts newest first. ?active=true hides acknowledged
// ones; ?venue= filters by venue.
// GET /api/alerts
func (h *PortfolioHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly := q.Get("active") == "true"
	venue := q.Get("venue")

	var out []domain.Alert
	for _, a := range h.src.View().Alerts {
		if activeOnly && a.Acknowledged {
			continue
		}
		if venue != "" && a.VenueID != venue {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": newestFirst(out, parseLimit(r))})
}

// AckAlert queues an acknowledgement applied by the next tick.
// POST /api/alerts/{id}/ack
func (h *PortfolioHandler) AckAlert(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}
	err := h.src.Ack(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "alert not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "acknowledgement queue full")
	default:
		h.logger.Error("ack failed", slog.String("alert_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Trades returns trade records newest first. ?source=journal reads the
// persistent journal instead of the in-memory window.
// GET /api/trades
func (h *PortfolioHandler) Trades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	venue := r.URL.Query().Get("venue")

	if r.URL.Query().Get("source") == "journal" {
		if h.journal == nil {
			writeError(w, http.StatusNotImplemented, "trade journal not configured")
			return
		}
		trades, err := h.journal.ListRecent(r.Context(), limit)
		if err != nil {
			h.logger.Error("journal read failed", slog.String("error", err.Error()))
			status := http.StatusBadGateway
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			writeError(w, status, "trade journal unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": "journal", "trades": filterVenue(trades, venue)})
		return
	}

	trades := filterVenue(h.src.View().Trades, venue)
	writeJSON(w, http.StatusOK, map[string]any{"source": "memory", "trades": newestFirst(trades, limit)})
}

func filterVenue(trades []domain.TradeRecord, venue string) []domain.TradeRecord {
	if venue == "" {
		return trades
	}
	var out []domain.TradeRecord
	for _, t := range trades {
		if t.VenueID == venue {
			out = append(out, t)
		}
	}
	return out
}

// Rejections returns the risk-gate audit trail newest first.
// GET /api/rejections
func (h *PortfolioHandler) Rejections(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	var out []domain.Rejection
	for _, rej := range h.src.View().Rejections {
		if reason == "" || string(rej.Reason) == reason {
			out = append(out, rej)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejections": newestFirst(out, parseLimit(r))})
}

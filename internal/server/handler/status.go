package handler

import (
	"net/http"
	"time"
)

// Meta is static information about the running bot.
type Meta struct {
	Mode      string
	DryRun    bool
	Venues    []string
	StartedAt time.Time
}

// StatusHandler serves the loop summary.
type StatusHandler struct {
	src  Source
	meta Meta
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(src Source, meta Meta) *StatusHandler {
	return &StatusHandler{src: src, meta: meta}
}

// Status returns tick statistics, detector counters and quoter states.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	view := h.src.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.meta.Mode,
		"dry_run":        h.meta.DryRun,
		"venues":         h.meta.Venues,
		"started_at":     h.meta.StartedAt,
		"uptime_seconds": int64(time.Since(h.meta.StartedAt).Seconds()),
		"last_tick":      h.src.Stats(),
		"skipped_ticks":  h.src.Skipped(),
		"detectors":      h.src.Detectors(),
		"quoters":        view.Quoters,
		"open_orders":    len(view.Orders),
		"state_taken_at": view.TakenAt,
	})
}

// ConfigHandler serves the redacted active configuration.
type ConfigHandler struct {
	redacted any
}

// NewConfigHandler creates a ConfigHandler. redacted must already have its
// secrets masked.
func NewConfigHandler(redacted any) *ConfigHandler {
	return &ConfigHandler{redacted: redacted}
}

// Config returns the configuration.
// GET /api/config
func (h *ConfigHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.redacted)
}

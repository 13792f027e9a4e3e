package domain

import "time"

// Signal bus channels.
const (
	ChannelTicks      = "venuebot:ticks"
	ChannelTrades     = "venuebot:trades"
	ChannelAlerts     = "venuebot:alerts"
	ChannelRejections = "venuebot:rejections"
	StreamTrades      = "venuebot:stream:trades"
)

// Event is the JSON envelope published on the signal bus.
type Event struct {
	Type    string    `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// TickStats summarizes one scheduler tick.
type TickStats struct {
	Seq        int64         `json:"seq"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Venues     int           `json:"venues"`
	Failed     int           `json:"failed"`
	Discarded  int           `json:"discarded"`
	Proposals  int           `json:"proposals"`
	Approved   int           `json:"approved"`
	Rejected   int           `json:"rejected"`
	Executed   int           `json:"executed"`
	ExecFailed int           `json:"exec_failed"`
	Skipped    int64         `json:"skipped"`
	Err        string        `json:"error,omitempty"`
}

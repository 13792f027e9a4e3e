// Package feed keeps venue order books current from WebSocket push streams.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/alanyoungcy/venuebot/internal/venue/rest"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// Config describes one streamed market.
type Config struct {
	VenueID string
	Market  string
	Pair    string
	URL     string
	// MaxAge is how long a pushed book is served before reads fall back
	// to the upstream venue.
	MaxAge time.Duration
}

// Command is the subscribe frame sent after connecting.
type Command struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Market  string `json:"market"`
}

// Message is a pushed frame. Book frames carry the full book.
type Message struct {
	Type    string `json:"type"` // book, error
	Message string `json:"message,omitempty"`
	rest.APIBook
}

// BookStream implements domain.Venue over an upstream venue, serving order
// books from the most recent push while it is fresh. Everything else is
// delegated to the upstream.
type BookStream struct {
	cfg      Config
	upstream domain.Venue
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	latest   domain.MarketSnapshot
	received time.Time
}

// NewBookStream creates a stream for cfg.Market in front of upstream.
func NewBookStream(cfg Config, upstream domain.Venue, logger *slog.Logger) *BookStream {
	if cfg.Market == "" {
		cfg.Market = cfg.VenueID
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	return &BookStream{
		cfg:      cfg,
		upstream: upstream,
		logger:   logger.With(slog.String("component", "book_stream"), slog.String("venue", cfg.VenueID)),
		now:      time.Now,
	}
}

// Run connects, subscribes to the book channel and applies pushes until ctx
// is cancelled. Disconnects are retried with exponential backoff.
func (s *BookStream) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		started := s.now()
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if s.now().Sub(started) > maxReconnectDelay {
			delay = reconnectDelay
		}
		s.logger.Warn("book stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

func (s *BookStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: %s: connect: %w", s.cfg.VenueID, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Command{Type: "subscribe", Channel: "book", Market: s.cfg.Market}); err != nil {
		return fmt.Errorf("feed: %s: subscribe: %w", s.cfg.VenueID, err)
	}
	s.logger.Info("book stream subscribed", slog.String("market", s.cfg.Market))

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Closing the connection unblocks ReadMessage on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: %s: read: %w", s.cfg.VenueID, err)
		}
		if err := s.handle(data); err != nil {
			s.logger.Warn("book push dropped", slog.String("error", err.Error()))
		}
	}
}

// handle applies one frame. Malformed books are dropped and the previous
// book keeps being served until it ages out.
func (s *BookStream) handle(data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode: %w: %w", domain.ErrDataIntegrity, err)
	}
	switch msg.Type {
	case "book":
		if msg.Market != "" && msg.Market != s.cfg.Market {
			return nil
		}
		now := s.now()
		snap, err := msg.ToDomainSnapshot(s.cfg.VenueID, s.cfg.Pair, now)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.latest = snap
		s.received = now
		s.mu.Unlock()
		return nil
	case "error":
		return fmt.Errorf("venue error: %s", msg.Message)
	}
	return nil
}

// Latest returns the last pushed book and whether it is still fresh.
func (s *BookStream) Latest() (domain.MarketSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.received.IsZero() || s.now().Sub(s.received) > s.cfg.MaxAge {
		return domain.MarketSnapshot{}, false
	}
	return s.latest.Clone(), true
}

func (s *BookStream) OrderBook(ctx context.Context, venueID string, depth int) (domain.MarketSnapshot, error) {
	if snap, ok := s.Latest(); ok {
		if depth > 0 {
			snap.Bids = snap.Bids[:min(depth, len(snap.Bids))]
			snap.Asks = snap.Asks[:min(depth, len(snap.Asks))]
		}
		return snap, nil
	}
	return s.upstream.OrderBook(ctx, venueID, depth)
}

func (s *BookStream) Stats(ctx context.Context, venueID string) (domain.VenueStats, error) {
	return s.upstream.Stats(ctx, venueID)
}

func (s *BookStream) EstimateConversion(ctx context.Context, venueID string, amountIn decimal.Decimal, side domain.OrderSide) (domain.Conversion, error) {
	return s.upstream.EstimateConversion(ctx, venueID, amountIn, side)
}

func (s *BookStream) Submit(ctx context.Context, a domain.Action) (domain.Outcome, error) {
	return s.upstream.Submit(ctx, a)
}

func (s *BookStream) AccountHealth(ctx context.Context, venueID string) ([]domain.AccountHealth, error) {
	hs, ok := s.upstream.(domain.HealthSource)
	if !ok {
		return nil, fmt.Errorf("feed: %s: account health: %w", venueID, domain.ErrUnsupported)
	}
	return hs.AccountHealth(ctx, venueID)
}

// Package memory provides in-process implementations of the shared
// infrastructure ports for single-instance deployments without Redis.
package memory

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/alanyoungcy/venuebot/internal/domain"
)

const (
	defaultStreamMaxLen = 10000
	subscriberBuffer    = 128
)

type subscriber struct {
	pattern string
	ch      chan []byte
}

// SignalBus implements domain.SignalBus inside one process. Publish never
// blocks: a subscriber whose buffer is full misses the message. Streams
// keep the newest maxLen entries with ids "1", "2", ...
type SignalBus struct {
	maxLen int

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	streams map[string]*stream
}

type stream struct {
	seq     int64
	entries []domain.StreamMessage
}

// NewSignalBus creates a bus. maxLen <= 0 keeps 10000 entries per stream.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{
		maxLen:  maxLen,
		subs:    make(map[*subscriber]struct{}),
		streams: make(map[string]*stream),
	}
}

// Publish delivers payload to every subscriber whose channel or glob
// pattern matches channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for channel, which may be a glob
// pattern. The returned channel is closed when ctx is done.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{pattern: channel, ch: make(chan []byte, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

func matches(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// StreamAppend appends payload to the named stream.
func (b *SignalBus) StreamAppend(_ context.Context, name string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[name]
	if !ok {
		st = &stream{}
		b.streams[name] = st
	}
	st.seq++
	st.entries = append(st.entries, domain.StreamMessage{
		ID:      strconv.FormatInt(st.seq, 10),
		Payload: append([]byte(nil), payload...),
	})
	if over := len(st.entries) - b.maxLen; over > 0 {
		st.entries = append([]domain.StreamMessage(nil), st.entries[over:]...)
	}
	return nil
}

// StreamRead returns up to count entries with ids greater than lastID.
// "0" and "0-0" read from the beginning; count <= 0 reads everything.
func (b *SignalBus) StreamRead(_ context.Context, name, lastID string, count int) ([]domain.StreamMessage, error) {
	after := int64(0)
	if lastID != "" && lastID != "0-0" {
		n, err := strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			return nil, err
		}
		after = n
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.streams[name]
	if !ok {
		return nil, nil
	}
	var out []domain.StreamMessage
	for _, m := range st.entries {
		id, _ := strconv.ParseInt(m.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)

package executor

import (
	"sync"
	"time"
)

// Dedup remembers action ids for a time-to-live window so an action is never
// submitted twice. It is safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // action id -> first seen
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup that treats an id as a duplicate if it was seen
// within ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen reports whether id was recorded within the TTL before now. An unseen
// or expired id is recorded and false is returned.
func (d *Dedup) Seen(id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

// Cleanup removes entries older than the TTL and returns how many were
// removed.
func (d *Dedup) Cleanup(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
			n++
		}
	}
	return n
}

// Len returns the number of remembered ids.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const defaultSnapshotTTL = 5 * time.Minute

// SnapshotCache implements domain.SnapshotCache. It keeps the latest
// validated snapshot of each venue for readers outside the tick loop.
//
// Key schema:
//
//	{prefix}:snapshot:{venueID}      - JSON encoded MarketSnapshot
//	{prefix}:snapshot:{venueID}:bbo  - hash with "bid", "ask", "mid", "ts"
type SnapshotCache struct {
	c   *Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache whose entries expire after ttl
// (five minutes when ttl <= 0), so a dead bot does not leave fresh-looking
// books behind.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{c: c, ttl: ttl}
}

func (sc *SnapshotCache) snapKey(venueID string) string { return sc.c.Key("snapshot", venueID) }
func (sc *SnapshotCache) bboKey(venueID string) string  { return sc.c.Key("snapshot", venueID, "bbo") }

// SetSnapshot atomically replaces a venue's snapshot and top of book.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.MarketSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot %s: %w", snap.VenueID, err)
	}

	bboKey := sc.bboKey(snap.VenueID)
	pipe := sc.c.rdb.TxPipeline()
	pipe.Set(ctx, sc.snapKey(snap.VenueID), body, sc.ttl)
	pipe.Del(ctx, bboKey)
	pipe.HSet(ctx, bboKey,
		"bid", snap.BestBid.Price.String(),
		"ask", snap.BestAsk.Price.String(),
		"mid", snap.MidPrice.String(),
		"ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	)
	pipe.Expire(ctx, bboKey, sc.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.VenueID, err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot or domain.ErrNotFound.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context, venueID string) (domain.MarketSnapshot, error) {
	body, err := sc.c.rdb.Get(ctx, sc.snapKey(venueID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: snapshot %s: %w", venueID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", venueID, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: decode snapshot %s: %w", venueID, err)
	}
	return snap, nil
}

// BBO is the cached top of book of one venue.
type BBO struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Mid       decimal.Decimal
	Timestamp time.Time
}

// GetBBO reads only the top of book. It returns domain.ErrNotFound if the
// venue has no cached entry.
func (sc *SnapshotCache) GetBBO(ctx context.Context, venueID string) (BBO, error) {
	vals, err := sc.c.rdb.HGetAll(ctx, sc.bboKey(venueID)).Result()
	if err != nil {
		return BBO{}, fmt.Errorf("redis: get bbo %s: %w", venueID, err)
	}
	if len(vals) == 0 {
		return BBO{}, fmt.Errorf("redis: bbo %s: %w", venueID, domain.ErrNotFound)
	}
	return parseBBO(vals)
}

func parseBBO(vals map[string]string) (BBO, error) {
	var out BBO
	for field, dst := range map[string]*decimal.Decimal{"bid": &out.Bid, "ask": &out.Ask, "mid": &out.Mid} {
		d, err := decimal.NewFromString(vals[field])
		if err != nil {
			return BBO{}, fmt.Errorf("redis: bbo field %s: %w", field, err)
		}
		*dst = d
	}
	if ts, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		out.Timestamp = time.Unix(0, ts).UTC()
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)

package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxdesk/scheduling/pkg/logging"
)

// Cache stores rendered availability results in Redis keyed by org and
// date. It is strictly an optimization for repeated same-day lookups during
// a call: booking and cancellation invalidate the affected date, and the
// short TTL bounds staleness from bookings made through other channels.
// All cache failures degrade to a recompute, never to a caller-facing error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates an availability cache. A nil client yields a nil cache,
// which every method tolerates.
func NewCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached result for org+date if present.
func (c *Cache) Get(ctx context.Context, orgID, date string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(orgID, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("availability cache read failed", "error", err, "org_id", orgID, "date", date)
		}
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("availability cache decode failed", "error", err, "org_id", orgID, "date", date)
		return nil, false
	}
	return &res, true
}

// Set stores the result for org+date with the configured TTL.
func (c *Cache) Set(ctx context.Context, orgID, date string, res *Result) {
	if c == nil || res == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("availability cache encode failed", "error", err, "org_id", orgID, "date", date)
		return
	}
	if err := c.client.Set(ctx, cacheKey(orgID, date), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("availability cache write failed", "error", err, "org_id", orgID, "date", date)
	}
}

// Invalidate drops the cached result for org+date, called after a booking
// or cancellation changes that day's availability.
func (c *Cache) Invalidate(ctx context.Context, orgID, date string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(orgID, date)).Err(); err != nil {
		c.logger.Warn("availability cache invalidate failed", "error", err, "org_id", orgID, "date", date)
	}
}

func cacheKey(orgID, date string) string {
	return fmt.Sprintf("voxdesk:avail:%s:%s", orgID, date)
}

package matchgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
)

// NodeIDCache is a read-through cache for (matcher, value) -> MatchNode.ID
// lookups, cutting contention on the hot upsert path (§5). It is never the
// source of truth: callers must still reconcile against storage on a miss
// and may ignore the cache entirely when RedisURL is unset.
type NodeIDCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewNodeIDCache constructs a NodeIDCache. A nil client makes every method
// a no-op, matching the teacher's nil-safe limiter pattern.
func NewNodeIDCache(client *redis.Client, ttl time.Duration) *NodeIDCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &NodeIDCache{redis: client, ttl: ttl}
}

func cacheKey(matcher, value string) string {
	return "matchnode:" + matcher + ":" + value
}

// Get returns the cached node id, if present.
func (c *NodeIDCache) Get(ctx domain.Context, matcher, value string) (int64, bool) {
	if c == nil || c.redis == nil {
		return 0, false
	}
	res, err := c.redis.Get(ctx, cacheKey(matcher, value)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("match node cache get failed", slog.String("matcher", matcher), slog.Any("error", err))
		}
		observability.RecordMatchNodeCacheResult(false)
		return 0, false
	}
	id, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return 0, false
	}
	observability.RecordMatchNodeCacheResult(true)
	return id, true
}

// Set stores a resolved node id.
func (c *NodeIDCache) Set(ctx domain.Context, matcher, value string, id int64) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(matcher, value), fmt.Sprintf("%d", id), c.ttl).Err(); err != nil {
		slog.Warn("match node cache set failed", slog.String("matcher", matcher), slog.Any("error", err))
	}
}

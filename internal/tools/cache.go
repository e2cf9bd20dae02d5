// Package tools implements the tool registry, the execution pipeline and
// the handlers exposed to the language model.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
)

const redisKeyPrefix = "clinical:cache:tool:"

// CacheStats tracks cache performance counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// ResultCache caches successful tool results keyed by canonicalized
// arguments. Tier 1 is an in-process TTL LRU; tier 2 is an optional Redis
// client shared across replicas. Failure results are never stored.
type ResultCache struct {
	memory *expirable.LRU[string, domain.ToolCallResult]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	statsMutex sync.Mutex
	stats      CacheStats
}

// NewResultCache creates a result cache. redisClient may be nil, in which
// case only the in-process tier is used.
func NewResultCache(maxEntries int, ttl time.Duration, redisClient *redis.Client, logger *logrus.Logger) *ResultCache {
	return &ResultCache{
		memory: expirable.NewLRU[string, domain.ToolCallResult](maxEntries, nil, ttl),
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// GenerateKey canonicalizes a tool call into a stable cache key. JSON
// marshaling sorts map keys, so argument order never affects the key.
func GenerateKey(toolName string, arguments map[string]interface{}) string {
	argBytes, _ := json.Marshal(arguments)
	hash := sha256.Sum256(append([]byte(toolName+"::"), argBytes...))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached result for a key, if present and unexpired.
func (c *ResultCache) Get(ctx context.Context, key string) (domain.ToolCallResult, bool) {
	if result, ok := c.memory.Get(key); ok {
		c.recordHit(true)
		return result, true
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil {
			var result domain.ToolCallResult
			if jsonErr := json.Unmarshal(data, &result); jsonErr == nil {
				// Promote to the in-process tier.
				c.memory.Add(key, result)
				c.recordHit(true)
				return result, true
			}
		}
	}

	c.recordHit(false)
	return domain.ToolCallResult{}, false
}

// Set stores a successful result. Failure results are dropped so a
// transient outage does not poison later identical calls.
func (c *ResultCache) Set(ctx context.Context, key string, result domain.ToolCallResult) {
	if !result.OK() {
		return
	}

	c.memory.Add(key, result)

	if c.redis != nil {
		data, err := json.Marshal(result)
		if err == nil {
			if err := c.redis.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
				c.logger.WithError(err).Warn("Failed to store tool result in Redis cache")
			}
		}
	}
}

// Clear empties both cache tiers.
func (c *ResultCache) Clear(ctx context.Context) {
	c.memory.Purge()

	if c.redis != nil {
		keys, err := c.redis.Keys(ctx, redisKeyPrefix+"*").Result()
		if err == nil && len(keys) > 0 {
			c.redis.Del(ctx, keys...)
		}
	}

	c.statsMutex.Lock()
	c.stats = CacheStats{}
	c.statsMutex.Unlock()
}

// Len returns the number of entries in the in-process tier.
func (c *ResultCache) Len() int {
	return c.memory.Len()
}

// Stats returns a snapshot of the hit and miss counters.
func (c *ResultCache) Stats() CacheStats {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return c.stats
}

func (c *ResultCache) recordHit(hit bool) {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
}

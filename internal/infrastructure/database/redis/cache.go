package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

var ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")

const (
	DefaultBadgeTTL  = 24 * time.Hour
	DefaultSearchTTL = 300 * time.Second
)

// jitterTTL spreads expiries by +/- 10% so a bulk recompute does not expire
// all at once.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

// ─────────────────────────────────────────────────────────────────────────────
// Badge cache
// ─────────────────────────────────────────────────────────────────────────────

// BadgeCache stores computed badges under <prefix>badge:<caseID>. Redis
// failures degrade to recomputation and are never returned to readers.
type BadgeCache struct {
	client *Client
	ttl    time.Duration
	jitter func(time.Duration) time.Duration
	group  singleflight.Group
	logger logging.Logger
}

func NewBadgeCache(client *Client, ttl time.Duration, log logging.Logger) *BadgeCache {
	if ttl <= 0 {
		ttl = DefaultBadgeTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &BadgeCache{client: client, ttl: ttl, jitter: jitterTTL, logger: log.Named("badge_cache")}
}

func (c *BadgeCache) key(caseID string) string { return c.client.Key("badge", caseID) }

// Badge returns the cached badge of caseID, or runs compute once per key
// across concurrent callers and caches its result.
func (c *BadgeCache) Badge(ctx context.Context, caseID string, compute func(context.Context) (citation.Badge, error)) (citation.Badge, error) {
	raw, err := c.client.Get(ctx, c.key(caseID)).Result()
	switch {
	case err == nil:
		if b, ok := parseBadge(raw); ok {
			return b, nil
		}
		c.logger.Warn("discarding malformed cached badge", logging.CaseID(caseID), logging.String("value", raw))
	case err != redis.Nil:
		c.logger.Warn("badge cache read failed", logging.CaseID(caseID), logging.Err(err))
	}

	v, err, _ := c.group.Do(caseID, func() (interface{}, error) {
		b, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, caseID, b); err != nil {
			c.logger.Warn("badge cache write failed", logging.CaseID(caseID), logging.Err(err))
		}
		return b, nil
	})
	if err != nil {
		return "", err
	}
	return v.(citation.Badge), nil
}

// Put stores a freshly computed badge.
func (c *BadgeCache) Put(ctx context.Context, caseID string, badge citation.Badge) error {
	if err := c.client.Set(ctx, c.key(caseID), string(badge), c.jitter(c.ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to cache badge")
	}
	return nil
}

// Invalidate drops the cached badges of caseIDs.
func (c *BadgeCache) Invalidate(ctx context.Context, caseIDs ...string) error {
	if len(caseIDs) == 0 {
		return nil
	}
	keys := make([]string, len(caseIDs))
	for i, id := range caseIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to invalidate badges")
	}
	return nil
}

func parseBadge(s string) (citation.Badge, bool) {
	switch b := citation.Badge(s); b {
	case citation.BadgeGood, citation.BadgeCaution, citation.BadgeNegative:
		return b, true
	}
	return "", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Search result cache
// ─────────────────────────────────────────────────────────────────────────────

// SearchCache holds serialized search responses keyed by request hash.
type SearchCache struct {
	client *Client
	ttl    time.Duration
	logger logging.Logger
}

func NewSearchCache(client *Client, ttl time.Duration, log logging.Logger) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &SearchCache{client: client, ttl: ttl, logger: log.Named("search_cache")}
}

func (c *SearchCache) key(hash string) string { return c.client.Key("search", hash) }

// Get decodes the entry for hash into dest. found is false on a miss.
func (c *SearchCache) Get(ctx context.Context, hash string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read search cache")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("dropping undecodable search cache entry", logging.String("hash", hash), logging.Err(err))
		_ = c.client.Del(ctx, c.key(hash)).Err()
		return false, nil
	}
	return true, nil
}

func (c *SearchCache) Set(ctx context.Context, hash string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.key(hash), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write search cache")
	}
	return nil
}

// Purge removes every cached search response. Ingestion calls it after a job
// changes the corpus.
func (c *SearchCache) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.key("*")
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "failed to scan search cache")
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "failed to purge search cache")
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

//Personal.AI order the ending

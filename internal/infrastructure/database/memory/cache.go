package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// BadgeCache keeps computed badges in process memory.
type BadgeCache struct {
	mu     sync.RWMutex
	badges map[string]citation.Badge
	group  singleflight.Group
}

func NewBadgeCache() *BadgeCache {
	return &BadgeCache{badges: make(map[string]citation.Badge)}
}

func (c *BadgeCache) Badge(ctx context.Context, caseID string, compute func(context.Context) (citation.Badge, error)) (citation.Badge, error) {
	c.mu.RLock()
	b, ok := c.badges[caseID]
	c.mu.RUnlock()
	if ok {
		return b, nil
	}
	v, err, _ := c.group.Do(caseID, func() (interface{}, error) {
		b, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.Put(ctx, caseID, b)
		return b, nil
	})
	if err != nil {
		return "", err
	}
	return v.(citation.Badge), nil
}

func (c *BadgeCache) Put(_ context.Context, caseID string, badge citation.Badge) error {
	c.mu.Lock()
	c.badges[caseID] = badge
	c.mu.Unlock()
	return nil
}

func (c *BadgeCache) Invalidate(_ context.Context, caseIDs ...string) error {
	c.mu.Lock()
	for _, id := range caseIDs {
		delete(c.badges, id)
	}
	c.mu.Unlock()
	return nil
}

// Len is the number of cached badges.
func (c *BadgeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.badges)
}

// SearchCache stores JSON-encoded responses with a TTL.
type SearchCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]searchEntry
}

type searchEntry struct {
	data    []byte
	expires time.Time
}

func NewSearchCache(ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &SearchCache{ttl: ttl, now: time.Now, entries: make(map[string]searchEntry)}
}

func (c *SearchCache) Get(_ context.Context, hash string, dest interface{}) (bool, error) {
	c.mu.Lock()
	e, ok := c.entries[hash]
	if ok && !c.now().Before(e.expires) {
		delete(c.entries, hash)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode cached search")
	}
	return true, nil
}

func (c *SearchCache) Set(_ context.Context, hash string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode search")
	}
	c.mu.Lock()
	c.entries[hash] = searchEntry{data: data, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *SearchCache) Purge(_ context.Context) (int64, error) {
	c.mu.Lock()
	n := int64(len(c.entries))
	c.entries = make(map[string]searchEntry)
	c.mu.Unlock()
	return n, nil
}

//Personal.AI order the ending

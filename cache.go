package wapi

import (
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is the number of responses kept per content name before
// the least recently used one is evicted.
const DefaultCacheCapacity = 4096

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// ResponseCache maps (content name, resource identity) to a response and an
// absolute expiry instant. Expired entries are removed lazily on lookup. All
// operations are serialised by a single lock.
type ResponseCache struct {
	mu       sync.Mutex
	buckets  map[string]*lru.Cache[string, *cacheEntry]
	capacity int
	now      func() time.Time
}

// NewResponseCache returns an empty cache holding at most capacity responses
// per content name. A capacity below one selects DefaultCacheCapacity.
func NewResponseCache(capacity int) *ResponseCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &ResponseCache{
		buckets:  make(map[string]*lru.Cache[string, *cacheEntry]),
		capacity: capacity,
		now:      time.Now,
	}
}

// Store caches resp for ttl, replacing any entry with the same key.
func (c *ResponseCache) Store(contentName, id string, resp *Response, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.buckets[contentName]
	if !ok {
		// only fails for a non-positive size, which the constructor rules out
		bucket, _ = lru.New[string, *cacheEntry](c.capacity)
		c.buckets[contentName] = bucket
	}
	bucket.Add(id, &cacheEntry{
		response:  resp,
		expiresAt: c.now().Add(ttl),
	})
}

// Lookup purges every expired entry and then returns the cached response for
// the key, if any.
func (c *ResponseCache) Lookup(contentName, id string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	bucket, ok := c.buckets[contentName]
	if !ok {
		return nil, false
	}
	entry, ok := bucket.Get(id)
	if !ok {
		return nil, false
	}
	return entry.response, true
}

// Invalidate removes every entry stored under contentName, expired or not,
// and returns how many were removed.
func (c *ResponseCache) Invalidate(contentName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.buckets[contentName]
	if !ok {
		return 0
	}
	delete(c.buckets, contentName)
	return bucket.Len()
}

// InvalidateMatching removes the entries of every content name matched by
// pattern and returns the matched names in sorted order.
func (c *ResponseCache) InvalidateMatching(pattern glob.Glob) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []string
	for name := range c.buckets {
		if pattern.Match(name) {
			matched = append(matched, name)
		}
	}
	for _, name := range matched {
		delete(c.buckets, name)
	}
	sort.Strings(matched)
	return matched
}

// Clear removes all entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = make(map[string]*lru.Cache[string, *cacheEntry])
}

// Len returns the number of stored entries, including expired ones that have
// not been purged yet.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, bucket := range c.buckets {
		total += bucket.Len()
	}
	return total
}

// ContentNames returns the content names that currently hold entries.
func (c *ResponseCache) ContentNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// purgeExpired must be called with c.mu held.
func (c *ResponseCache) purgeExpired() {
	now := c.now()
	for name, bucket := range c.buckets {
		for _, id := range bucket.Keys() {
			entry, ok := bucket.Peek(id)
			if ok && now.After(entry.expiresAt) {
				bucket.Remove(id)
			}
		}
		if bucket.Len() == 0 {
			delete(c.buckets, name)
		}
	}
}

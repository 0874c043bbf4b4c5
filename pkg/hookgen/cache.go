package hookgen

import (
	"sync"
	"time"
)

// Roles is the cached role view of a quota record.
type Roles struct {
	IsAdmin bool
	IsPro   bool
}

// RoleCache caches role lookups so the quota path does not read the
// profile store twice per request.
type RoleCache interface {
	// Get returns the cached roles and true if found and not expired
	Get(userID string) (Roles, bool)

	// Set stores roles for userID with the given TTL
	Set(userID string, roles Roles, ttl time.Duration)

	// Invalidate removes userID from the cache
	Invalidate(userID string)

	// Clear removes all entries from the cache
	Clear()

	// Stats returns cache statistics
	Stats() CacheStats
}

// CacheStats holds cache performance statistics
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NoopCache is a RoleCache that never stores anything.
// Used when caching is disabled
type NoopCache struct{}

func (NoopCache) Get(string) (Roles, bool)         { return Roles{}, false }
func (NoopCache) Set(string, Roles, time.Duration) {}
func (NoopCache) Invalidate(string)                {}
func (NoopCache) Clear()                           {}
func (NoopCache) Stats() CacheStats                { return CacheStats{} }

type cacheEntry struct {
	roles      Roles
	expiration time.Time
	accessTime time.Time
	sequence   int64 // tiebreak when access times are equal
}

// LRUCache implements RoleCache with TTL expiry and least-recently-used eviction.
type LRUCache struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	max       int
	now       func() time.Time
	hits      int64
	misses    int64
	evictions int64
	sequence  int64
}

// NewLRUCache creates a cache holding at most maxEntries users (default 1000)
func NewLRUCache(maxEntries int) *LRUCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &LRUCache{
		entries: make(map[string]*cacheEntry, maxEntries),
		max:     maxEntries,
		now:     time.Now,
	}
}

func (c *LRUCache) Get(userID string) (Roles, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[userID]
	if !ok || now.After(entry.expiration) {
		c.misses++
		return Roles{}, false
	}

	entry.accessTime = now
	entry.sequence = c.nextSequence()
	c.hits++
	return entry.roles, true
}

func (c *LRUCache) Set(userID string, roles Roles, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[userID]; !exists && len(c.entries) >= c.max {
		c.evictOldest()
	}

	c.entries[userID] = &cacheEntry{
		roles:      roles,
		expiration: now.Add(ttl),
		accessTime: now,
		sequence:   c.nextSequence(),
	}
}

func (c *LRUCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry, c.max)
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
}

// evictOldest drops the least recently used entry. Caller holds mu.
func (c *LRUCache) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
		oldestSeq  int64
		first      = true
	)
	for key, entry := range c.entries {
		if first || entry.accessTime.Before(oldestTime) ||
			(entry.accessTime.Equal(oldestTime) && entry.sequence < oldestSeq) {
			oldestKey = key
			oldestTime = entry.accessTime
			oldestSeq = entry.sequence
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

func (c *LRUCache) nextSequence() int64 {
	c.sequence++
	return c.sequence
}

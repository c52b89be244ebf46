package resilience

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached stage output. Entries are never mutated after
// insertion; a changed output gets a new fingerprint.
type entry struct {
	fingerprint string
	value       interface{}
	expiresAt   time.Time
}

// Cache is a bounded LRU mapping fingerprints to stage outputs with a
// per-entry TTL. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element

	hits   int64
	misses int64
}

// NewCache builds a cache holding at most capacity entries, each living
// for ttl after insertion.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the live entry for fingerprint, promoting it to
// most-recently-used. Expired entries are evicted on access.
func (c *Cache) Get(fingerprint string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Put stores value under fingerprint with the cache's default TTL,
// evicting the least-recently-used entry when at capacity.
func (c *Cache) Put(fingerprint string, value interface{}) {
	c.PutTTL(fingerprint, value, c.ttl)
}

// PutTTL stores value with an explicit TTL. ttl <= 0 means no expiry.
func (c *Cache) PutTTL(fingerprint string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if el, ok := c.items[fingerprint]; ok {
		// same fingerprint means same content: refresh recency and expiry
		el.Value.(*entry).expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}

	for c.ll.Len() >= c.capacity {
		c.removeLocked(c.ll.Back())
	}
	el := c.ll.PushFront(&entry{fingerprint: fingerprint, value: value, expiresAt: expiresAt})
	c.items[fingerprint] = el
}

// Invalidate drops the entry for fingerprint, if present.
func (c *Cache) Invalidate(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[fingerprint]; ok {
		c.removeLocked(el)
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns cumulative hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).fingerprint)
}

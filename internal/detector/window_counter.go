package detector

import (
	"sync"
	"time"
)

type counterEntry struct {
	count     int
	expiresAt time.Time
}

// KeyedWindowCounter counts hits per key. Every hit renews the key's expiry
// to now+ttl; a key that has not been hit for ttl reads as zero.
type KeyedWindowCounter struct {
	mu   sync.Mutex
	data map[string]*counterEntry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// NewKeyedWindowCounter creates a counter with the given TTL. A nil now
// uses time.Now.
func NewKeyedWindowCounter(ttl time.Duration, now func() time.Time) *KeyedWindowCounter {
	if now == nil {
		now = time.Now
	}
	return &KeyedWindowCounter{
		data: make(map[string]*counterEntry),
		ttl:  ttl,
		now:  now,
	}
}

// Get returns the live count for key, or 0 if absent or expired.
func (c *KeyedWindowCounter) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return 0
	}
	return e.count
}

// Incr adds one hit for key and returns the new count. An expired entry
// restarts at 1.
func (c *KeyedWindowCounter) Incr(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e, ok := c.data[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &counterEntry{}
		c.data[key] = e
	}
	e.count++
	e.expiresAt = now.Add(c.ttl)
	return e.count
}

// Len returns the number of entries held, including expired ones not yet
// evicted.
func (c *KeyedWindowCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Evict removes entries that expired at or before now and returns how many
// were removed.
func (c *KeyedWindowCounter) Evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed++
		}
	}
	return removed
}

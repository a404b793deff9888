package forecast

import (
	"sync"
	"time"
)

// responseCache memoizes the upstream market payload. The day-ahead feed
// only changes once a day around 14:00, so short-lived reuse is safe and
// keeps the control loop from re-fetching identical data every cycle.
type responseCache struct {
	mu        sync.RWMutex
	entries   []marketEntry
	fetchedAt time.Time
	ttl       time.Duration
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl}
}

func (c *responseCache) get() ([]marketEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.entries, true
}

func (c *responseCache) set(entries []marketEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.fetchedAt = time.Now()
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

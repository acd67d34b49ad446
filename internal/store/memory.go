package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

var (
	// ErrNotFound is returned when no observation has been cached yet.
	ErrNotFound = errors.New("no weather observation cached")
)

// DefaultTTL is how long an observation counts as fresh.
const DefaultTTL = 60 * time.Minute

// MemoryCache is a concurrency-safe weather.Cache. It holds the latest
// observation for freshness checks plus a short history for diagnostics.
type MemoryCache struct {
	mu sync.RWMutex

	latest  weather.Observation
	hasData bool
	history []weather.Observation

	ttl        time.Duration
	maxHistory int // 0 keeps no history
}

// NewMemoryCache creates a cache with the given TTL. A non-positive ttl
// falls back to DefaultTTL.
func NewMemoryCache(ttl time.Duration, maxHistory int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

// TTL returns the freshness window.
func (c *MemoryCache) TTL() time.Duration {
	return c.ttl
}

// Save replaces the held observation and appends it to the history.
func (c *MemoryCache) Save(obs weather.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = obs
	c.hasData = true

	if c.maxHistory <= 0 {
		return
	}
	c.history = append(c.history, obs)
	if len(c.history) > c.maxHistory {
		over := len(c.history) - c.maxHistory
		c.history = append([]weather.Observation(nil), c.history[over:]...)
	}
}

// Fresh returns the held observation if now-FetchedAt is below the TTL.
func (c *MemoryCache) Fresh(now time.Time) (weather.Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasData || now.Sub(c.latest.FetchedAt) >= c.ttl {
		return weather.Observation{}, false
	}
	return c.latest, true
}

// Latest returns the held observation regardless of age.
func (c *MemoryCache) Latest() (weather.Observation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasData {
		return weather.Observation{}, ErrNotFound
	}
	return c.latest, nil
}

// History returns cached observations between from and to (inclusive), oldest first.
func (c *MemoryCache) History(from, to time.Time) ([]weather.Observation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []weather.Observation
	for _, obs := range c.history {
		if !obs.FetchedAt.Before(from) && !obs.FetchedAt.After(to) {
			result = append(result, obs)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

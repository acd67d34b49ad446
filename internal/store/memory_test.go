package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

func TestMemoryCache_Freshness(t *testing.T) {
	c := NewMemoryCache(60*time.Minute, 0)
	t0 := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	_, ok := c.Fresh(t0)
	assert.False(t, ok)
	_, err := c.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	c.Save(weather.Observation{Code: 3, FetchedAt: t0})

	obs, ok := c.Fresh(t0.Add(59 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 3, obs.Code)

	_, ok = c.Fresh(t0.Add(60 * time.Minute))
	assert.False(t, ok)
	_, ok = c.Fresh(t0.Add(61 * time.Minute))
	assert.False(t, ok)

	latest, err := c.Latest()
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Code)
}

func TestMemoryCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewMemoryCache(0, 0).TTL())
	assert.Equal(t, 5*time.Minute, NewMemoryCache(5*time.Minute, 0).TTL())
}

func TestMemoryCache_HistoryRetention(t *testing.T) {
	c := NewMemoryCache(time.Hour, 3)
	t0 := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c.Save(weather.Observation{Code: i, FetchedAt: t0.Add(time.Duration(i) * time.Hour)})
	}

	all, err := c.History(t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].Code)
	assert.Equal(t, 4, all[2].Code)

	one, err := c.History(t0.Add(3*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 3, one[0].Code)

	_, err = c.History(t0.Add(48*time.Hour), t0.Add(72*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache_ConcurrentReadersSeeWholeObservations(t *testing.T) {
	c := NewMemoryCache(time.Hour, 10)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Save(weather.Observation{Code: i, Text: "reading", Temperature: float64(i), FetchedAt: now})
		}(i)
		go func() {
			defer wg.Done()
			if obs, ok := c.Fresh(now); ok {
				assert.Equal(t, float64(obs.Code), obs.Temperature)
			}
		}()
	}
	wg.Wait()
}

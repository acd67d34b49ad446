package metrics

import (
	"sync"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

var (
	mu        sync.RWMutex
	dogstatsd *statsd.Client
)

// Init connects to the DogStatsD agent. Metrics stay disabled (every call is
// a no-op) until Init succeeds.
func Init(addr, namespace string, tags []string) {
	client, err := statsd.New(addr, statsd.WithNamespace(namespace), statsd.WithTags(tags))
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Failed to create DogStatsD client")
		return
	}

	mu.Lock()
	dogstatsd = client
	mu.Unlock()

	log.Info().
		Str("addr", addr).
		Str("namespace", namespace).
		Strs("tags", tags).
		Msg("Datadog metrics initialized")
}

// Close flushes and drops the client.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if dogstatsd != nil {
		if err := dogstatsd.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close DogStatsD client")
		}
		dogstatsd = nil
	}
}

func client() *statsd.Client {
	mu.RLock()
	defer mu.RUnlock()
	return dogstatsd
}

// Incr bumps a counter by one.
func Incr(name string, tags ...string) {
	Count(name, 1, tags...)
}

// Count adds value to a counter.
func Count(name string, value int64, tags ...string) {
	c := client()
	if c == nil {
		return
	}
	if err := c.Count(name, value, tags, 1); err != nil {
		log.Debug().Err(err).Str("metric", name).Msg("Failed to emit count metric")
	}
}

// Gauge records the current value of name.
func Gauge(name string, value float64, tags ...string) {
	c := client()
	if c == nil {
		return
	}
	if err := c.Gauge(name, value, tags, 1); err != nil {
		log.Debug().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}

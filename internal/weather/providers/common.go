package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 1 << 20

var (
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
	errEmptyBody   = errors.New("empty response body")
	errCircuitOpen = errors.New("circuit breaker open")
	errNoClient    = errors.New("http client not configured")
	errNoAPIKey    = errors.New("no API key configured and no built-in key")
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// getBody performs exactly one GET through the circuit breaker and returns
// the non-empty body. Every error is a *weather.FetchError.
func getBody(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, provider, rawURL string) ([]byte, error) {
	if client == nil {
		return nil, weather.NewFetchError(weather.KindConfig, provider, errNoClient)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, weather.NewFetchError(weather.KindConfig, provider, err)
	}

	log.Debug().Str("provider", provider).Str("endpoint", redact(req.URL)).Msg("Weather API request")

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, transportError(ctx, provider, execErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, weather.NewFetchError(weather.KindNetwork, provider, fmt.Errorf("%w: %d", errServerError, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, weather.NewFetchError(weather.KindNetwork, provider, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode))
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, transportError(ctx, provider, readErr)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, weather.NewFetchError(weather.KindNetwork, provider, errEmptyBody)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, weather.NewFetchError(weather.KindNetwork, provider, fmt.Errorf("%w: %v", errCircuitOpen, err))
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, weather.NewFetchError(weather.KindNetwork, provider, fmt.Errorf("unexpected result type from circuit breaker"))
	}
	return body, nil
}

func transportError(ctx context.Context, provider string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return weather.NewFetchError(weather.KindTimeout, provider, err)
	}
	return weather.NewFetchError(weather.KindNetwork, provider, err)
}

func parseError(provider string, format string, args ...any) error {
	return weather.NewFetchError(weather.KindParse, provider, fmt.Errorf(format, args...))
}

// redact drops the query so API keys never reach the logs.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

type coordinates struct {
	lat, lon float64
}

// geoCache remembers place-name lookups for the provider's lifetime.
type geoCache struct {
	mu   sync.RWMutex
	data map[string]coordinates
}

func (c *geoCache) get(name string) (coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coords, ok := c.data[name]
	return coords, ok
}

func (c *geoCache) put(name string, coords coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]coordinates)
	}
	c.data[name] = coords
}

// resolve returns loc's coordinates, geocoding the place name when needed.
// Any geocoding failure is reported as KindGeocoding.
func resolve(ctx context.Context, provider string, cache *geoCache, loc weather.Location,
	lookup func(ctx context.Context, name string) (coordinates, error),
) (coordinates, error) {
	if loc.HasCoordinates() {
		return coordinates{lat: *loc.Lat, lon: *loc.Lon}, nil
	}

	key := loc.Key()
	if coords, ok := cache.get(key); ok {
		return coords, nil
	}

	coords, err := lookup(ctx, loc.Name)
	if err != nil {
		var inner *weather.FetchError
		if errors.As(err, &inner) {
			err = inner.Err
		}
		return coordinates{}, weather.NewFetchError(weather.KindGeocoding, provider, fmt.Errorf("resolving %q: %w", loc.Name, err))
	}
	cache.put(key, coords)

	log.Info().
		Str("provider", provider).
		Str("place", loc.Name).
		Float64("lat", coords.lat).
		Float64("lon", coords.lon).
		Msg("Resolved place name")
	return coords, nil
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

package weather

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// FetchResult is delivered on the channel returned by FetchAsync.
type FetchResult struct {
	Observation Observation
	Err         error
}

// Service fronts a single provider with the observation cache.
type Service struct {
	cache      Cache
	provider   Provider
	defaultKey string
	now        func() time.Time
}

// NewService creates a new Service. defaultKey is used when callers pass an
// empty API key.
func NewService(cache Cache, provider Provider, defaultKey string) *Service {
	return &Service{
		cache:      cache,
		provider:   provider,
		defaultKey: defaultKey,
		now:        time.Now,
	}
}

// ProviderName returns the name of the wrapped provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Fetch returns the cached observation while it is fresh, unless force is
// set; otherwise it asks the provider and caches the result. Failed fetches
// never touch the cache.
func (s *Service) Fetch(ctx context.Context, apiKey, location string, force bool) (Observation, error) {
	name := s.provider.Name()

	loc, err := ParseLocation(location)
	if err != nil {
		return Observation{}, NewFetchError(KindConfig, name, err)
	}

	if !force {
		if cached, ok := s.cache.Fresh(s.now()); ok && cached.Provider == name && cached.Location == loc.Key() {
			log.Debug().
				Str("provider", name).
				Time("fetched_at", cached.FetchedAt).
				Msg("Using cached weather")
			return cached, nil
		}
	}

	if apiKey == "" {
		apiKey = s.defaultKey
	}

	obs, err := s.provider.Fetch(ctx, apiKey, loc)
	if err != nil {
		return Observation{}, classify(ctx, name, err)
	}

	obs.Provider = name
	obs.Location = loc.Key()
	obs.Condition = ConditionFor(obs.Code)
	obs.FetchedAt = s.now()
	s.cache.Save(obs)

	log.Info().
		Str("provider", name).
		Int("code", obs.Code).
		Str("text", obs.Text).
		Float64("temperature", obs.Temperature).
		Msg("Weather data updated")
	return obs, nil
}

// FetchAsync runs Fetch on its own goroutine. The channel receives exactly
// one result and is then closed.
func (s *Service) FetchAsync(ctx context.Context, apiKey, location string, force bool) <-chan FetchResult {
	out := make(chan FetchResult, 1)
	go func() {
		defer close(out)
		obs, err := s.Fetch(ctx, apiKey, location, force)
		out <- FetchResult{Observation: obs, Err: err}
	}()
	return out
}

// Latest returns the last cached observation regardless of age.
func (s *Service) Latest() (Observation, error) {
	return s.cache.Latest()
}

// classify makes sure every failure leaving the service is a *FetchError.
func classify(ctx context.Context, provider string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewFetchError(KindTimeout, provider, err)
	}
	return NewFetchError(KindNetwork, provider, err)
}

package weather

import (
	"context"
	"time"
)

// Provider abstracts one weather API. Fetch performs exactly one network
// round trip (two when a place name must be geocoded first) and returns an
// observation whose Code is already normalized, or a *FetchError.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, apiKey string, loc Location) (Observation, error)
}

// Cache is the contract the observation cache must satisfy. Writes replace
// the held observation atomically.
type Cache interface {
	Save(obs Observation)
	// Fresh returns the held observation if it was fetched less than the TTL before now.
	Fresh(now time.Time) (Observation, bool)
	Latest() (Observation, error)
}

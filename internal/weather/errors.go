package weather

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind int

const (
	KindNetwork FetchErrorKind = iota
	KindTimeout
	KindParse
	KindGeocoding
	KindConfig
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindGeocoding:
		return "geocoding"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork   = errors.New("weather request failed")
	ErrTimeout   = errors.New("weather request timed out")
	ErrParse     = errors.New("weather payload malformed")
	ErrGeocoding = errors.New("geocoding failed")
	ErrConfig    = errors.New("weather provider misconfigured")
)

var kindSentinels = map[FetchErrorKind]error{
	KindNetwork:   ErrNetwork,
	KindTimeout:   ErrTimeout,
	KindParse:     ErrParse,
	KindGeocoding: ErrGeocoding,
	KindConfig:    ErrConfig,
}

// FetchError is returned by providers for every failed fetch.
type FetchError struct {
	Kind     FetchErrorKind
	Provider string
	Err      error
}

// NewFetchError wraps err with kind and provider.
func NewFetchError(kind FetchErrorKind, provider string, err error) *FetchError {
	return &FetchError{Kind: kind, Provider: provider, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Transient reports whether waiting for the next scheduled tick is likely to
// help (network trouble) as opposed to a payload or configuration problem.
func (e *FetchError) Transient() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// KindOf extracts the FetchErrorKind of err, defaulting to KindNetwork.
func KindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}

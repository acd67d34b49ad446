package providers

import (
	"context"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

// SimulatedProvider answers every fetch with a fixed reading. Used in debug
// mode to drive scenes by hand; Code is already in the normalized space.
type SimulatedProvider struct {
	Code        int
	Temperature float64
	Text        string
}

func NewSimulatedProvider(code int, temperature float64, text string) *SimulatedProvider {
	return &SimulatedProvider{Code: code, Temperature: temperature, Text: text}
}

func (p *SimulatedProvider) Name() string {
	return "simulated"
}

func (p *SimulatedProvider) Fetch(ctx context.Context, _ string, _ weather.Location) (weather.Observation, error) {
	if err := ctx.Err(); err != nil {
		return weather.Observation{}, weather.NewFetchError(weather.KindTimeout, p.Name(), err)
	}
	return weather.Observation{
		Code:        p.Code,
		RawCode:     p.Code,
		Text:        p.Text,
		Temperature: p.Temperature,
	}, nil
}

package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

// Provider names accepted by New.
const (
	Seniverse   = "seniverse"
	OpenWeather = "openweather"
	OpenMeteo   = "openmeteo"
	Simulated   = "simulated"
)

// Names lists every supported provider.
var Names = []string{Seniverse, OpenWeather, OpenMeteo, Simulated}

// New builds the provider selected by name. sim is only used for Simulated.
func New(name string, client *http.Client, sim *SimulatedProvider) (weather.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Seniverse:
		return NewSeniverseProvider(client), nil
	case OpenWeather:
		return NewOpenWeatherProvider(client), nil
	case OpenMeteo:
		return NewOpenMeteoProvider(client), nil
	case Simulated:
		if sim == nil {
			sim = NewSimulatedProvider(0, 20, "Simulated")
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key and reports WMO codes and is_day natively.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	geoURL  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	places  geoCache
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		geoURL:  "https://geocoding-api.open-meteo.com/v1/search",
		client:  client,
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, _ string, loc weather.Location) (weather.Observation, error) {
	coords, err := resolve(ctx, p.name, &p.places, loc, p.geocode)
	if err != nil {
		return weather.Observation{}, err
	}

	values := url.Values{}
	values.Set("latitude", formatCoord(coords.lat))
	values.Set("longitude", formatCoord(coords.lon))
	values.Set("current", "weather_code,is_day,temperature_2m")
	values.Set("timezone", "auto")

	body, err := getBody(ctx, p.client, p.circuit, p.name, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.Observation{}, err
	}
	return p.parse(body)
}

func (p *OpenMeteoProvider) geocode(ctx context.Context, name string) (coordinates, error) {
	values := url.Values{}
	values.Set("name", name)
	values.Set("count", "1")

	body, err := getBody(ctx, p.client, p.circuit, p.name, fmt.Sprintf("%s?%s", p.geoURL, values.Encode()))
	if err != nil {
		return coordinates{}, err
	}

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return coordinates{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(payload.Results) == 0 {
		return coordinates{}, fmt.Errorf("no match for place name")
	}
	first := payload.Results[0]
	return coordinates{lat: first.Latitude, lon: first.Longitude}, nil
}

func (p *OpenMeteoProvider) parse(body []byte) (weather.Observation, error) {
	var payload struct {
		Current *struct {
			Time        string   `json:"time"`
			Temperature *float64 `json:"temperature_2m"`
			WeatherCode *int     `json:"weather_code"`
			IsDay       *int     `json:"is_day"`
		} `json:"current"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, parseError(p.name, "decoding response: %w", err)
	}
	cur := payload.Current
	if cur == nil || cur.WeatherCode == nil || cur.Temperature == nil {
		return weather.Observation{}, parseError(p.name, "response has no current weather_code/temperature_2m")
	}

	code := normalizeWMO(*cur.WeatherCode)
	text, ok := wmoText[code]
	if !ok {
		text = "Unknown"
	}

	obs := weather.Observation{
		Code:        code,
		RawCode:     *cur.WeatherCode,
		Text:        text,
		Temperature: *cur.Temperature,
	}
	if cur.IsDay != nil {
		isDay := *cur.IsDay == 1
		obs.IsDay = &isDay
	}
	return obs, nil
}

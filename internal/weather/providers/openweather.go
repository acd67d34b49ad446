package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-env-sync/internal/common"
	"github.com/i474232898/weather-env-sync/internal/weather"
)

// OpenWeatherProvider implements the coordinate-based weather.Provider for
// OpenWeatherMap. Place names are geocoded through the OpenWeather direct
// geocoding endpoint first.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	geoURL  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	places  geoCache
}

func NewOpenWeatherProvider(client *http.Client) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweather",
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		geoURL:  "https://api.openweathermap.org/geo/1.0/direct",
		client:  client,
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, apiKey string, loc weather.Location) (weather.Observation, error) {
	if apiKey == "" {
		return weather.Observation{}, weather.NewFetchError(weather.KindConfig, p.name, errNoAPIKey)
	}

	coords, err := resolve(ctx, p.name, &p.places, loc, func(ctx context.Context, name string) (coordinates, error) {
		return p.geocode(ctx, apiKey, name)
	})
	if err != nil {
		return weather.Observation{}, err
	}

	values := url.Values{}
	values.Set("lat", formatCoord(coords.lat))
	values.Set("lon", formatCoord(coords.lon))
	values.Set("appid", apiKey)
	values.Set("units", "metric")

	body, err := getBody(ctx, p.client, p.circuit, p.name, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.Observation{}, err
	}
	return p.parse(body)
}

func (p *OpenWeatherProvider) geocode(ctx context.Context, apiKey, name string) (coordinates, error) {
	values := url.Values{}
	values.Set("q", name)
	values.Set("limit", "1")
	values.Set("appid", apiKey)

	body, err := getBody(ctx, p.client, p.circuit, p.name, fmt.Sprintf("%s?%s", p.geoURL, values.Encode()))
	if err != nil {
		return coordinates{}, err
	}

	var places []struct {
		Name string   `json:"name"`
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &places); err != nil {
		return coordinates{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(places) == 0 {
		return coordinates{}, fmt.Errorf("no match for place name")
	}
	if places[0].Lat == nil || places[0].Lon == nil {
		return coordinates{}, fmt.Errorf("first match %q has no coordinates", places[0].Name)
	}
	return coordinates{lat: *places[0].Lat, lon: *places[0].Lon}, nil
}

func (p *OpenWeatherProvider) parse(body []byte) (weather.Observation, error) {
	var payload struct {
		Dt      int64 `json:"dt"`
		Weather []struct {
			ID          int    `json:"id"`
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Sys struct {
			Sunrise int64 `json:"sunrise"`
			Sunset  int64 `json:"sunset"`
		} `json:"sys"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, parseError(p.name, "decoding response: %w", err)
	}
	if len(payload.Weather) == 0 {
		return weather.Observation{}, parseError(p.name, "response has no weather entries")
	}
	if payload.Main == nil || payload.Main.Temp == nil {
		return weather.Observation{}, parseError(p.name, "response has no main.temp")
	}

	first := payload.Weather[0]
	text := first.Description
	if text == "" {
		text = first.Main
	}
	if text == "" {
		text = "Unknown"
	}

	obs := weather.Observation{
		Code:        normalize(openWeatherToWMO, first.ID),
		RawCode:     first.ID,
		Text:        common.CapitalizeFirst(text),
		Temperature: *payload.Main.Temp,
	}

	if payload.Sys.Sunrise > 0 && payload.Sys.Sunset > payload.Sys.Sunrise {
		obs.Sun = &weather.SunTimes{
			Sunrise: time.Unix(payload.Sys.Sunrise, 0),
			Sunset:  time.Unix(payload.Sys.Sunset, 0),
		}
		if payload.Dt > 0 {
			isDay := payload.Dt >= payload.Sys.Sunrise && payload.Dt < payload.Sys.Sunset
			obs.IsDay = &isDay
		}
	}
	return obs, nil
}

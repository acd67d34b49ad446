package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

// SeniverseProvider implements the code-based weather.Provider. Seniverse
// takes a free-text location and answers with its own condition codes.
type SeniverseProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewSeniverseProvider(client *http.Client) *SeniverseProvider {
	return &SeniverseProvider{
		name:    "seniverse",
		baseURL: "https://api.seniverse.com/v3/weather/now.json",
		client:  client,
		circuit: newBreaker("seniverse"),
	}
}

func (p *SeniverseProvider) Name() string {
	return p.name
}

func (p *SeniverseProvider) Fetch(ctx context.Context, apiKey string, loc weather.Location) (weather.Observation, error) {
	if apiKey == "" {
		return weather.Observation{}, weather.NewFetchError(weather.KindConfig, p.name, errNoAPIKey)
	}

	values := url.Values{}
	values.Set("key", apiKey)
	values.Set("language", "en")
	values.Set("unit", "c")
	// Seniverse accepts "lat:lon" as well as place names.
	if loc.HasCoordinates() {
		values.Set("location", formatCoord(*loc.Lat)+":"+formatCoord(*loc.Lon))
	} else {
		values.Set("location", loc.Name)
	}

	body, err := getBody(ctx, p.client, p.circuit, p.name, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()))
	if err != nil {
		return weather.Observation{}, err
	}
	return p.parse(body)
}

func (p *SeniverseProvider) parse(body []byte) (weather.Observation, error) {
	var payload struct {
		Status  string `json:"status"`
		Results []struct {
			Now *struct {
				Text        string `json:"text"`
				Code        string `json:"code"`
				Temperature string `json:"temperature"`
			} `json:"now"`
		} `json:"results"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, parseError(p.name, "decoding response: %w", err)
	}
	if len(payload.Results) == 0 || payload.Results[0].Now == nil {
		if payload.Status != "" {
			return weather.Observation{}, parseError(p.name, "api status: %s", payload.Status)
		}
		return weather.Observation{}, parseError(p.name, "response has no now object")
	}

	now := payload.Results[0].Now
	if strings.TrimSpace(now.Text) == "" {
		return weather.Observation{}, parseError(p.name, "now.text is empty")
	}
	raw, err := strconv.Atoi(strings.TrimSpace(now.Code))
	if err != nil {
		return weather.Observation{}, parseError(p.name, "now.code %q: %w", now.Code, err)
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(now.Temperature), 64)
	if err != nil {
		return weather.Observation{}, parseError(p.name, "now.temperature %q: %w", now.Temperature, err)
	}

	obs := weather.Observation{
		Code:        normalize(seniverseToWMO, raw),
		RawCode:     raw,
		Text:        now.Text,
		Temperature: temp,
	}
	if isDay, ok := seniverseIsDay[raw]; ok {
		obs.IsDay = &isDay
	}
	return obs, nil
}

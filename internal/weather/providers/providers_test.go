package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-env-sync/internal/weather"
)

type fakeAPI struct {
	srv         *httptest.Server
	weatherHits atomic.Int32
	geoHits     atomic.Int32
	lastQuery   atomic.Value
}

func newFakeAPI(t *testing.T, weatherHandler, geoHandler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		api.weatherHits.Add(1)
		api.lastQuery.Store(r.URL.Query())
		weatherHandler(w, r)
	})
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		api.geoHits.Add(1)
		if geoHandler == nil {
			http.NotFound(w, r)
			return
		}
		geoHandler(w, r)
	})
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func place(name string) weather.Location {
	return weather.Location{Name: name}
}

func coords(lat, lon float64) weather.Location {
	return weather.Location{Lat: &lat, Lon: &lon}
}

func TestSeniverse_Fetch(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK,
		`{"results":[{"location":{"name":"Shanghai"},"now":{"text":"Light rain","code":"13","temperature":"18"},"last_update":"2026-10-15T09:00:00+08:00"}]}`), nil)
	p := NewSeniverseProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"

	obs, err := p.Fetch(context.Background(), "secret", place("Shanghai"))

	require.NoError(t, err)
	assert.Equal(t, 61, obs.Code)
	assert.Equal(t, 13, obs.RawCode)
	assert.Equal(t, "Light rain", obs.Text)
	assert.Equal(t, 18.0, obs.Temperature)
	assert.Nil(t, obs.IsDay)

	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"secret"}, q["key"])
	assert.Equal(t, []string{"Shanghai"}, q["location"])
}

func TestSeniverse_DayNightCodes(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK,
		`{"results":[{"now":{"text":"Clear","code":"1","temperature":"9"}}]}`), nil)
	p := NewSeniverseProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"

	obs, err := p.Fetch(context.Background(), "secret", coords(31.23, 121.47))

	require.NoError(t, err)
	assert.Equal(t, 0, obs.Code)
	require.NotNil(t, obs.IsDay)
	assert.False(t, *obs.IsDay)
	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"31.2300:121.4700"}, q["location"])
}

func TestSeniverse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"malformed json", respond(http.StatusOK, `{"results":[`), weather.ErrParse},
		{"missing now", respond(http.StatusOK, `{"results":[{"location":{}}]}`), weather.ErrParse},
		{"api status", respond(http.StatusOK, `{"status":"The API key is invalid.","status_code":"AP010003"}`), weather.ErrParse},
		{"non numeric code", respond(http.StatusOK, `{"results":[{"now":{"text":"Rain","code":"x","temperature":"1"}}]}`), weather.ErrParse},
		{"empty text", respond(http.StatusOK, `{"results":[{"now":{"text":"","code":"1","temperature":"1"}}]}`), weather.ErrParse},
		{"server error", respond(http.StatusInternalServerError, `oops`), weather.ErrNetwork},
		{"forbidden", respond(http.StatusForbidden, `{}`), weather.ErrNetwork},
		{"empty body", respond(http.StatusOK, "  "), weather.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t, tt.handler, nil)
			p := NewSeniverseProvider(api.srv.Client())
			p.baseURL = api.srv.URL + "/weather"

			_, err := p.Fetch(context.Background(), "secret", place("Madrid"))

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSeniverse_RequiresKey(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, `{}`), nil)
	p := NewSeniverseProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"

	_, err := p.Fetch(context.Background(), "", place("Madrid"))

	assert.ErrorIs(t, err, weather.ErrConfig)
	assert.Zero(t, api.weatherHits.Load())
}

const openWeatherClearNight = `{
	"weather":[{"id":800,"main":"Clear","description":"clear sky"}],
	"main":{"temp":15.5},
	"dt":1760560000,
	"sys":{"sunrise":1760508000,"sunset":1760548000}
}`

func TestOpenWeather_FetchByCoordinates(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, openWeatherClearNight), nil)
	p := NewOpenWeatherProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"
	p.geoURL = api.srv.URL + "/geo"

	obs, err := p.Fetch(context.Background(), "secret", coords(40.4168, -3.7038))

	require.NoError(t, err)
	assert.Equal(t, 0, obs.Code)
	assert.Equal(t, 800, obs.RawCode)
	assert.Equal(t, "Clear sky", obs.Text)
	assert.Equal(t, 15.5, obs.Temperature)
	require.NotNil(t, obs.IsDay)
	assert.False(t, *obs.IsDay)
	require.NotNil(t, obs.Sun)
	assert.Equal(t, int64(1760508000), obs.Sun.Sunrise.Unix())

	assert.Equal(t, int32(1), api.weatherHits.Load())
	assert.Zero(t, api.geoHits.Load())
	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"40.4168"}, q["lat"])
	assert.Equal(t, []string{"-3.7038"}, q["lon"])
	assert.Equal(t, []string{"metric"}, q["units"])
}

func TestOpenWeather_GeocodesPlaceNamesOnce(t *testing.T) {
	api := newFakeAPI(t,
		respond(http.StatusOK, `{"weather":[{"id":501,"main":"Rain","description":"moderate rain"}],"main":{"temp":9.2}}`),
		respond(http.StatusOK, `[{"name":"Madrid","lat":40.4167,"lon":-3.7033,"country":"ES"},{"name":"Madrid","lat":41.1,"lon":-93.8}]`))
	p := NewOpenWeatherProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"
	p.geoURL = api.srv.URL + "/geo"

	for i := 0; i < 2; i++ {
		obs, err := p.Fetch(context.Background(), "secret", place("Madrid"))
		require.NoError(t, err)
		assert.Equal(t, 61, obs.Code)
		assert.Nil(t, obs.IsDay)
	}

	assert.Equal(t, int32(1), api.geoHits.Load())
	assert.Equal(t, int32(2), api.weatherHits.Load())
	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"40.4167"}, q["lat"])
}

func TestOpenWeather_GeocodingFailureShortCircuits(t *testing.T) {
	for name, geo := range map[string]http.HandlerFunc{
		"no results":   respond(http.StatusOK, `[]`),
		"bad payload":  respond(http.StatusOK, `{"cod":401}`),
		"server error": respond(http.StatusBadGateway, ``),
	} {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t, respond(http.StatusOK, openWeatherClearNight), geo)
			p := NewOpenWeatherProvider(api.srv.Client())
			p.baseURL = api.srv.URL + "/weather"
			p.geoURL = api.srv.URL + "/geo"

			_, err := p.Fetch(context.Background(), "secret", place("Atlantis"))

			assert.ErrorIs(t, err, weather.ErrGeocoding)
			assert.NotErrorIs(t, err, weather.ErrNetwork)
			assert.NotErrorIs(t, err, weather.ErrParse)
			assert.Equal(t, weather.KindGeocoding, weather.KindOf(err))
			assert.Zero(t, api.weatherHits.Load())
		})
	}
}

func TestOpenWeather_ParseFailures(t *testing.T) {
	for name, body := range map[string]string{
		"no weather": `{"weather":[],"main":{"temp":1}}`,
		"no main":    `{"weather":[{"id":800}]}`,
		"no temp":    `{"weather":[{"id":800}],"main":{}}`,
		"truncated":  `{"weather":[{"id":800`,
	} {
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t, respond(http.StatusOK, body), nil)
			p := NewOpenWeatherProvider(api.srv.Client())
			p.baseURL = api.srv.URL + "/weather"

			_, err := p.Fetch(context.Background(), "secret", coords(1, 2))

			assert.ErrorIs(t, err, weather.ErrParse)
		})
	}
}

func TestOpenMeteo_Fetch(t *testing.T) {
	api := newFakeAPI(t,
		respond(http.StatusOK, `{"current":{"time":"2026-10-15T10:00","temperature_2m":12.3,"weather_code":61,"is_day":1}}`),
		respond(http.StatusOK, `{"results":[{"name":"Shanghai","latitude":31.22,"longitude":121.46}]}`))
	p := NewOpenMeteoProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"
	p.geoURL = api.srv.URL + "/geo"

	obs, err := p.Fetch(context.Background(), "", place("Shanghai"))

	require.NoError(t, err)
	assert.Equal(t, 61, obs.Code)
	assert.Equal(t, "Slight rain", obs.Text)
	assert.Equal(t, 12.3, obs.Temperature)
	require.NotNil(t, obs.IsDay)
	assert.True(t, *obs.IsDay)
	q := api.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"31.2200"}, q["latitude"])
}

func TestOpenMeteo_UnknownCodeAndMissingFields(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusOK, `{"current":{"temperature_2m":1,"weather_code":42}}`), nil)
	p := NewOpenMeteoProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"

	obs, err := p.Fetch(context.Background(), "", coords(0, 0))
	require.NoError(t, err)
	assert.Equal(t, weather.CodeUnknown, obs.Code)
	assert.Equal(t, 42, obs.RawCode)
	assert.Nil(t, obs.IsDay)

	api = newFakeAPI(t, respond(http.StatusOK, `{"current":{"temperature_2m":1}}`), nil)
	p.baseURL = api.srv.URL + "/weather"
	_, err = p.Fetch(context.Background(), "", coords(0, 0))
	assert.ErrorIs(t, err, weather.ErrParse)
}

func TestFetch_TimeoutIsTyped(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		respond(http.StatusOK, `{}`)(w, r)
	}, nil)
	client := api.srv.Client()
	client.Timeout = 50 * time.Millisecond
	p := NewOpenMeteoProvider(client)
	p.baseURL = api.srv.URL + "/weather"

	_, err := p.Fetch(context.Background(), "", coords(0, 0))

	assert.ErrorIs(t, err, weather.ErrTimeout)
}

func TestFetch_CircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	api := newFakeAPI(t, respond(http.StatusServiceUnavailable, ``), nil)
	p := NewOpenMeteoProvider(api.srv.Client())
	p.baseURL = api.srv.URL + "/weather"

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background(), "", coords(0, 0))
		require.ErrorIs(t, err, weather.ErrNetwork)
	}
	_, err := p.Fetch(context.Background(), "", coords(0, 0))

	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.ErrorIs(t, err, errCircuitOpen)
	assert.Equal(t, int32(5), api.weatherHits.Load())
}

func TestSimulated_Fetch(t *testing.T) {
	p := NewSimulatedProvider(95, 25, "DebugWeather")

	obs, err := p.Fetch(context.Background(), "", weather.Location{})
	require.NoError(t, err)
	assert.Equal(t, 95, obs.Code)
	assert.Equal(t, "DebugWeather", obs.Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Fetch(ctx, "", weather.Location{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, name := range Names {
		p, err := New(name, http.DefaultClient, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}
	_, err := New("accuweather", http.DefaultClient, nil)
	assert.Error(t, err)
}

func TestNormalizationTables(t *testing.T) {
	for raw, code := range openWeatherToWMO {
		assert.NotEqual(t, weather.ConditionUnknown, weather.ConditionFor(code), "openweather id %d", raw)
	}
	for raw := 0; raw <= 38; raw++ {
		code, ok := seniverseToWMO[raw]
		if assert.True(t, ok, "seniverse code %d unmapped", raw) {
			assert.NotEqual(t, weather.ConditionUnknown, weather.ConditionFor(code), "seniverse code %d", raw)
		}
	}
	assert.Equal(t, weather.CodeUnknown, normalize(seniverseToWMO, 99))
	assert.Equal(t, weather.CodeUnknown, normalize(openWeatherToWMO, 999))
	for code := range wmoText {
		assert.Equal(t, code, normalizeWMO(code))
	}
}

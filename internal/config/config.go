package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-env-sync/internal/daytime"
)

// Fetch timeouts outside this range are clamped.
const (
	MinFetchTimeout = 10 * time.Second
	MaxFetchTimeout = 15 * time.Second
)

type AppConfig struct {
	// RefreshMinutes is the sync interval.
	RefreshMinutes int `yaml:"refresh_minutes" validate:"min=1"`

	Sunrise  string           `yaml:"sunrise" validate:"required"`
	Sunset   string           `yaml:"sunset" validate:"required"`
	Schedule daytime.Schedule `yaml:"-"`

	// APIKey may be empty; DefaultAPIKey is then used.
	APIKey        string `yaml:"api_key"`
	DefaultAPIKey string `yaml:"default_api_key"`

	// Location is free text or "lat,lon".
	Location    string `yaml:"location" validate:"required"`
	SyncEnabled bool   `yaml:"sync_enabled"`
	Provider    string `yaml:"provider" validate:"oneof=seniverse openweather openmeteo simulated"`

	CacheTTL        time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	StoreMaxHistory int           `yaml:"store_max_history" validate:"min=0"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	SunScheduleSync bool          `yaml:"sun_schedule_sync"`

	// Simulated provider reading.
	DebugCode int     `yaml:"debug_code"`
	DebugTemp float64 `yaml:"debug_temp"`
	DebugText string  `yaml:"debug_text"`

	LogLevel  string `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`

	Port string `yaml:"port" validate:"required,numeric"`

	EnableDatadog bool     `yaml:"enable_datadog"`
	DDAgentAddr   string   `yaml:"dd_agent_addr" validate:"required_if=EnableDatadog true"`
	DDNamespace   string   `yaml:"dd_namespace"`
	DDTags        []string `yaml:"dd_tags"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *AppConfig {
	return &AppConfig{
		RefreshMinutes:  15,
		Sunrise:         "06:30",
		Sunset:          "18:30",
		Location:        "Madrid",
		SyncEnabled:     true,
		Provider:        "openweather",
		CacheTTL:        60 * time.Minute,
		StoreMaxHistory: 96, // roughly 24h at 15-minute intervals
		FetchTimeout:    MinFetchTimeout,
		SunScheduleSync: true,
		DebugCode:       0,
		DebugTemp:       20,
		DebugText:       "Simulated",
		LogLevel:        "info",
		LogFormat:       "json",
		Port:            "8080",
		DDAgentAddr:     "127.0.0.1:8125",
		DDNamespace:     "envsync.",
	}
}

// Load reads configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the environment (including .env), in that order.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("No .env file found or error loading it")
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field, parses the sun schedule and clamps the fetch
// timeout.
func (c *AppConfig) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	var errs []error
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}

	schedule, err := daytime.ParseSchedule(c.Sunrise, c.Sunset)
	if err != nil {
		errs = append(errs, err)
	}
	c.Schedule = schedule

	c.FetchTimeout = clampTimeout(c.FetchTimeout)
	return errors.Join(errs...)
}

// Interval returns RefreshMinutes as a duration.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.RefreshMinutes) * time.Minute
}

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d < MinFetchTimeout:
		return MinFetchTimeout
	case d > MaxFetchTimeout:
		return MaxFetchTimeout
	default:
		return d
	}
}

func applyEnv(cfg *AppConfig) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	integer("REFRESH_MINUTES", &cfg.RefreshMinutes)
	str("SUNRISE", &cfg.Sunrise)
	str("SUNSET", &cfg.Sunset)
	str("WEATHER_API_KEY", &cfg.APIKey)
	str("WEATHER_DEFAULT_API_KEY", &cfg.DefaultAPIKey)
	str("WEATHER_LOCATION", &cfg.Location)
	boolean("WEATHER_SYNC_ENABLED", &cfg.SyncEnabled)
	str("WEATHER_PROVIDER", &cfg.Provider)
	duration("WEATHER_CACHE_TTL", &cfg.CacheTTL)
	integer("STORE_MAX_HISTORY", &cfg.StoreMaxHistory)
	duration("FETCH_TIMEOUT", &cfg.FetchTimeout)
	boolean("SUN_SCHEDULE_SYNC", &cfg.SunScheduleSync)
	integer("DEBUG_CODE", &cfg.DebugCode)
	float("DEBUG_TEMP", &cfg.DebugTemp)
	str("DEBUG_TEXT", &cfg.DebugText)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("PORT", &cfg.Port)
	boolean("ENABLE_DATADOG", &cfg.EnableDatadog)
	str("DD_AGENT_ADDR", &cfg.DDAgentAddr)
	str("DD_NAMESPACE", &cfg.DDNamespace)
	if v := os.Getenv("DD_TAGS"); v != "" {
		cfg.DDTags = splitList(v)
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

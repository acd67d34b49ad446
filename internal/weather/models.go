package weather

import (
	"fmt"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRainy   Condition = "rainy"
	ConditionSnowy   Condition = "snowy"
	ConditionFoggy   Condition = "foggy"
)

// SunTimes is a provider-reported sunrise/sunset pair in local wall-clock time.
type SunTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Observation is one normalized weather reading. Code is in the shared
// (WMO) code space regardless of the provider that produced it.
type Observation struct {
	Provider    string    `json:"provider"`
	Location    string    `json:"location"`
	Code        int       `json:"code"`
	RawCode     int       `json:"rawCode"`
	Text        string    `json:"text"`
	Temperature float64   `json:"temperatureC"`
	Condition   Condition `json:"condition"`
	FetchedAt   time.Time `json:"fetchedAt"`

	// IsDay is set when the provider reports day/night itself.
	IsDay *bool `json:"isDay,omitempty"`
	// Sun is set when the provider reports today's sunrise and sunset.
	Sun *SunTimes `json:"sun,omitempty"`
}

func (o Observation) String() string {
	return fmt.Sprintf("%s code=%d (%s) %.1f°C via %s", o.Text, o.Code, o.Condition, o.Temperature, o.Provider)
}

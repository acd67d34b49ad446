package weather

import (
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-env-sync/internal/environment"
)

// CodeUnknown is the normalized sentinel for a provider code with no mapping.
const CodeUnknown = -1

// Normalized codes follow the WMO 4677 subset reported by Open-Meteo.
// Ranges are inclusive on both ends and never overlap.
type codeBucket struct {
	lo, hi    int
	clearSky  bool // base time follows is-day instead of Cloudy
	precip    environment.ID
	condition Condition
}

var buckets = []codeBucket{
	{lo: 0, hi: 1, clearSky: true, condition: ConditionClear},
	{lo: 2, hi: 3, condition: ConditionCloudy},
	{lo: 4, hi: 9, condition: ConditionFoggy}, // smoke, haze, dust
	{lo: 45, hi: 48, condition: ConditionFoggy},
	{lo: 51, hi: 57, precip: environment.LightRain, condition: ConditionRainy},
	{lo: 61, hi: 61, precip: environment.LightRain, condition: ConditionRainy},
	{lo: 62, hi: 67, precip: environment.HeavyRain, condition: ConditionRainy},
	{lo: 71, hi: 77, precip: environment.Snow, condition: ConditionSnowy},
	{lo: 80, hi: 80, precip: environment.LightRain, condition: ConditionRainy},
	{lo: 81, hi: 82, precip: environment.HeavyRain, condition: ConditionRainy},
	{lo: 85, hi: 86, precip: environment.Snow, condition: ConditionSnowy},
	{lo: 95, hi: 99, precip: environment.ThunderRain, condition: ConditionRainy},
}

func lookupBucket(code int) (codeBucket, bool) {
	for _, b := range buckets {
		if code >= b.lo && code <= b.hi {
			return b, true
		}
	}
	return codeBucket{}, false
}

func clearBase(isDay bool) environment.ID {
	if isDay {
		return environment.Day
	}
	return environment.Night
}

// Map turns a normalized weather code into the scene target. It is total:
// unrecognized codes fall back to a clear sky for the time of day.
func Map(code int, isDay bool) environment.TargetState {
	b, ok := lookupBucket(code)
	if !ok {
		log.Debug().Int("code", code).Bool("is_day", isDay).Msg("Unrecognized weather code, using clear sky")
		return environment.TargetState{BaseTime: clearBase(isDay)}
	}

	target := environment.TargetState{BaseTime: environment.Cloudy, Precipitation: b.precip}
	if b.clearSky {
		target.BaseTime = clearBase(isDay)
	}
	return target
}

// ConditionFor derives the coarse condition for a normalized code.
func ConditionFor(code int) Condition {
	if b, ok := lookupBucket(code); ok {
		return b.condition
	}
	return ConditionUnknown
}

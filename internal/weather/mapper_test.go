package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-env-sync/internal/environment"
)

func TestMap(t *testing.T) {
	tests := []struct {
		code  int
		isDay bool
		want  environment.TargetState
	}{
		{0, true, environment.TargetState{BaseTime: environment.Day}},
		{1, false, environment.TargetState{BaseTime: environment.Night}},
		{2, true, environment.TargetState{BaseTime: environment.Cloudy}},
		{3, false, environment.TargetState{BaseTime: environment.Cloudy}},
		{5, true, environment.TargetState{BaseTime: environment.Cloudy}},
		{45, false, environment.TargetState{BaseTime: environment.Cloudy}},
		{48, true, environment.TargetState{BaseTime: environment.Cloudy}},
		{51, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.LightRain}},
		{57, false, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.LightRain}},
		{61, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.LightRain}},
		{63, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.HeavyRain}},
		{67, false, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.HeavyRain}},
		{71, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.Snow}},
		{77, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.Snow}},
		{80, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.LightRain}},
		{82, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.HeavyRain}},
		{86, false, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.Snow}},
		{95, true, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.ThunderRain}},
		{99, false, environment.TargetState{BaseTime: environment.Cloudy, Precipitation: environment.ThunderRain}},
		{CodeUnknown, true, environment.TargetState{BaseTime: environment.Day}},
		{42, false, environment.TargetState{BaseTime: environment.Night}},
		{800, true, environment.TargetState{BaseTime: environment.Day}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Map(tt.code, tt.isDay), "code=%d isDay=%t", tt.code, tt.isDay)
	}
}

func TestMap_TotalOverCodeRange(t *testing.T) {
	for code := -1000; code <= 1000; code++ {
		for _, isDay := range []bool{true, false} {
			target := Map(code, isDay)
			if !assert.NoError(t, target.Validate(), "code=%d", code) {
				return
			}
			if _, known := lookupBucket(code); !known {
				want := environment.Night
				if isDay {
					want = environment.Day
				}
				assert.Equal(t, environment.TargetState{BaseTime: want}, target, "code=%d", code)
			}
		}
	}
}

func TestBuckets_DoNotOverlap(t *testing.T) {
	for i, a := range buckets {
		assert.LessOrEqual(t, a.lo, a.hi)
		for _, b := range buckets[i+1:] {
			assert.True(t, a.hi < b.lo || b.hi < a.lo, "buckets %d-%d and %d-%d overlap", a.lo, a.hi, b.lo, b.hi)
		}
	}
}

func TestConditionFor(t *testing.T) {
	assert.Equal(t, ConditionClear, ConditionFor(0))
	assert.Equal(t, ConditionCloudy, ConditionFor(3))
	assert.Equal(t, ConditionFoggy, ConditionFor(45))
	assert.Equal(t, ConditionRainy, ConditionFor(61))
	assert.Equal(t, ConditionSnowy, ConditionFor(75))
	assert.Equal(t, ConditionRainy, ConditionFor(96))
	assert.Equal(t, ConditionUnknown, ConditionFor(CodeUnknown))
}

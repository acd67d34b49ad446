package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseLatLon parses "lat,lon". ok is false when s does not look like a
// coordinate pair at all; err is set when it does but is out of range.
func ParseLatLon(s string) (lat, lon float64, ok bool, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false, nil
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false, nil
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, true, fmt.Errorf("coordinates out of range: %g,%g", lat, lon)
	}
	return lat, lon, true, nil
}

// CapitalizeFirst upper-cases the first rune of s.
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

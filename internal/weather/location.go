package weather

import (
	"fmt"
	"strings"

	"github.com/i474232898/weather-env-sync/internal/common"
)

// Location is either a free-text place name or a coordinate pair.
type Location struct {
	Name string   `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// ParseLocation accepts "lat,lon" or any other non-empty text as a place name.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("location is empty")
	}
	lat, lon, ok, err := common.ParseLatLon(s)
	if err != nil {
		return Location{}, err
	}
	if ok {
		return Location{Lat: &lat, Lon: &lon}, nil
	}
	return Location{Name: s}, nil
}

// HasCoordinates reports whether the location carries lat/lon.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Key returns a canonical string key used to tell cached readings apart.
func (l Location) Key() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *l.Lat, *l.Lon)
	}
	return strings.ToLower(l.Name)
}

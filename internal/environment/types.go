package environment

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies one scene state of the simulated environment.
type ID string

const (
	None ID = ""

	// Base time of day.
	Day    ID = "day"
	Sunset ID = "sunset"
	Night  ID = "night"
	Cloudy ID = "cloudy"

	// Precipitation.
	LightRain   ID = "light_rain"
	HeavyRain   ID = "heavy_rain"
	ThunderRain ID = "thunder_rain"
	Snow        ID = "snow"

	// Standalone effects, not part of any group.
	Fireplace ID = "fireplace"
	Whale     ID = "whale"
)

// All lists every known environment in a stable order.
var All = []ID{Day, Sunset, Night, Cloudy, LightRain, HeavyRain, ThunderRain, Snow, Fireplace, Whale}

// Valid reports whether id is one of the known environments.
func (id ID) Valid() bool {
	for _, known := range All {
		if id == known {
			return true
		}
	}
	return false
}

func (id ID) String() string {
	if id == None {
		return "none"
	}
	return string(id)
}

// Policy is the cardinality a MutexGroup must keep.
type Policy int

const (
	// ExactlyOne groups always have one active member.
	ExactlyOne Policy = iota
	// AtMostOne groups have zero or one active member.
	AtMostOne
)

func (p Policy) String() string {
	if p == ExactlyOne {
		return "exactly-one"
	}
	return "at-most-one"
}

// MutexGroup is a named set of environments of which at most one (or exactly
// one, depending on Policy) may be active at a time.
type MutexGroup struct {
	Name    string
	Members []ID
	Policy  Policy
}

// Contains reports whether id is a member of the group.
func (g MutexGroup) Contains(id ID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}

var (
	BaseTime = MutexGroup{
		Name:    "base_time",
		Members: []ID{Day, Sunset, Night, Cloudy},
		Policy:  ExactlyOne,
	}
	Precipitation = MutexGroup{
		Name:    "precipitation",
		Members: []ID{LightRain, HeavyRain, ThunderRain, Snow},
		Policy:  AtMostOne,
	}
)

// Groups are converged in this order.
var Groups = []MutexGroup{BaseTime, Precipitation}

// GroupOf returns the group id belongs to, if any.
func GroupOf(id ID) (MutexGroup, bool) {
	for _, g := range Groups {
		if g.Contains(id) {
			return g, true
		}
	}
	return MutexGroup{}, false
}

// TargetState is the desired combination the scheduler converges to.
// BaseTime is required, Precipitation may be None. Effects holds standalone
// environments keyed by whether they should be on.
type TargetState struct {
	BaseTime      ID          `json:"baseTime"`
	Precipitation ID          `json:"precipitation"`
	Effects       map[ID]bool `json:"effects,omitempty"`
}

// Validate checks that the target names members of the right groups.
func (t TargetState) Validate() error {
	if !BaseTime.Contains(t.BaseTime) {
		return fmt.Errorf("%w: base time %q is not a member of %s", ErrInvalidTarget, t.BaseTime, BaseTime.Name)
	}
	if t.Precipitation != None && !Precipitation.Contains(t.Precipitation) {
		return fmt.Errorf("%w: precipitation %q is not a member of %s", ErrInvalidTarget, t.Precipitation, Precipitation.Name)
	}
	for id := range t.Effects {
		if !id.Valid() {
			return fmt.Errorf("%w: unknown effect %q", ErrInvalidTarget, id)
		}
		if _, grouped := GroupOf(id); grouped {
			return fmt.Errorf("%w: %q belongs to a group and cannot be a standalone effect", ErrInvalidTarget, id)
		}
	}
	return nil
}

// Want returns the member the target selects for g.
func (t TargetState) Want(g MutexGroup) ID {
	switch {
	case g.Contains(t.BaseTime):
		return t.BaseTime
	case g.Contains(t.Precipitation):
		return t.Precipitation
	default:
		return None
	}
}

// Equal compares two targets including effects.
func (t TargetState) Equal(o TargetState) bool {
	if t.BaseTime != o.BaseTime || t.Precipitation != o.Precipitation || len(t.Effects) != len(o.Effects) {
		return false
	}
	for id, on := range t.Effects {
		if other, ok := o.Effects[id]; !ok || other != on {
			return false
		}
	}
	return true
}

func (t TargetState) String() string {
	s := fmt.Sprintf("{%s, %s", t.BaseTime, t.Precipitation)
	if len(t.Effects) > 0 {
		effects := make([]string, 0, len(t.Effects))
		for id, on := range t.Effects {
			effects = append(effects, fmt.Sprintf("%s=%t", id, on))
		}
		sort.Strings(effects)
		s += ", " + strings.Join(effects, " ")
	}
	return s + "}"
}

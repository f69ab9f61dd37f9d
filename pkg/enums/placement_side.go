package enums

import (
	"fmt"
	"strings"
)

// PlacementSide is the leg a member occupies under its placement parent.
type PlacementSide string

const (
	PlacementSideLeft  PlacementSide = "LEFT"
	PlacementSideRight PlacementSide = "RIGHT"
)

var validPlacementSides = []PlacementSide{
	PlacementSideLeft,
	PlacementSideRight,
}

// String implements fmt.Stringer.
func (s PlacementSide) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PlacementSide.
func (s PlacementSide) IsValid() bool {
	for _, candidate := range validPlacementSides {
		if candidate == s {
			return true
		}
	}
	return false
}

// Opposite returns the other leg.
func (s PlacementSide) Opposite() PlacementSide {
	if s == PlacementSideLeft {
		return PlacementSideRight
	}
	return PlacementSideLeft
}

// ParsePlacementSide converts raw input into a PlacementSide.
func ParsePlacementSide(value string) (PlacementSide, error) {
	normalized := PlacementSide(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validPlacementSides {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid placement side %q", value)
}

// PlacementPreference is the side requested at registration time. AUTO defers
// the choice to breadth-first placement.
type PlacementPreference string

const (
	PlacementPreferenceLeft  PlacementPreference = "LEFT"
	PlacementPreferenceRight PlacementPreference = "RIGHT"
	PlacementPreferenceAuto  PlacementPreference = "AUTO"
)

var validPlacementPreferences = []PlacementPreference{
	PlacementPreferenceLeft,
	PlacementPreferenceRight,
	PlacementPreferenceAuto,
}

// IsValid reports whether the value is a known PlacementPreference.
func (p PlacementPreference) IsValid() bool {
	for _, candidate := range validPlacementPreferences {
		if candidate == p {
			return true
		}
	}
	return false
}

// Side returns the explicit side and true, or false when the preference
// is AUTO.
func (p PlacementPreference) Side() (PlacementSide, bool) {
	switch p {
	case PlacementPreferenceLeft:
		return PlacementSideLeft, true
	case PlacementPreferenceRight:
		return PlacementSideRight, true
	default:
		return "", false
	}
}

// ParsePlacementPreference converts raw input into a PlacementPreference.
// Empty input defaults to AUTO.
func ParsePlacementPreference(value string) (PlacementPreference, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return PlacementPreferenceAuto, nil
	}
	normalized := PlacementPreference(trimmed)
	for _, candidate := range validPlacementPreferences {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid placement preference %q", value)
}

package enums

import (
	"fmt"
	"strings"
)

// Rank is a member's achievement tier in the compensation plan. Ranks are
// ordered; a member's rank never moves down.
type Rank string

const (
	RankAssociate Rank = "ASSOCIATE"
	RankSilver    Rank = "SILVER"
	RankGold      Rank = "GOLD"
	RankPlatinum  Rank = "PLATINUM"
	RankDiamond   Rank = "DIAMOND"
)

var rankOrder = map[Rank]int{
	RankAssociate: 0,
	RankSilver:    1,
	RankGold:      2,
	RankPlatinum:  3,
	RankDiamond:   4,
}

var validRanks = []Rank{
	RankAssociate,
	RankSilver,
	RankGold,
	RankPlatinum,
	RankDiamond,
}

// String implements fmt.Stringer.
func (r Rank) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Rank.
func (r Rank) IsValid() bool {
	_, ok := rankOrder[r]
	return ok
}

// AtLeast reports whether r is equal to or above the given rank.
// Unknown ranks never satisfy a requirement.
func (r Rank) AtLeast(required Rank) bool {
	mine, ok := rankOrder[r]
	if !ok {
		return false
	}
	needed, ok := rankOrder[required]
	if !ok {
		return false
	}
	return mine >= needed
}

// ParseRank converts raw input into a Rank.
func ParseRank(value string) (Rank, error) {
	normalized := Rank(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validRanks {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rank %q", value)
}

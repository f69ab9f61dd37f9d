package enums

import (
	"fmt"
	"strings"
)

// CommissionType classifies a commission entry by the plan rule that
// produced it.
type CommissionType string

const (
	CommissionTypeDirect CommissionType = "DIRECT"
	CommissionTypeLevel  CommissionType = "LEVEL"
	CommissionTypeBinary CommissionType = "BINARY"
	CommissionTypeBonus  CommissionType = "BONUS"
)

var validCommissionTypes = []CommissionType{
	CommissionTypeDirect,
	CommissionTypeLevel,
	CommissionTypeBinary,
	CommissionTypeBonus,
}

// String implements fmt.Stringer.
func (c CommissionType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionType.
func (c CommissionType) IsValid() bool {
	for _, candidate := range validCommissionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionType converts raw input into a CommissionType.
func ParseCommissionType(value string) (CommissionType, error) {
	normalized := CommissionType(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validCommissionTypes {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission type %q", value)
}

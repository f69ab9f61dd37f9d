package enums

import (
	"fmt"
	"strings"
)

// PayoutMethod is the disbursement channel for a withdrawal.
type PayoutMethod string

const (
	PayoutMethodBank PayoutMethod = "BANK"
	PayoutMethodUPI  PayoutMethod = "UPI"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodBank,
	PayoutMethodUPI,
}

// String implements fmt.Stringer.
func (m PayoutMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PayoutMethod.
func (m PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	normalized := PayoutMethod(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validPayoutMethods {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}

package enums

import (
	"fmt"
	"strings"
)

// PayoutStatus is the lifecycle state of a withdrawal request.
//
// Allowed transitions: REQUESTED -> APPROVED -> PAID, REQUESTED -> REJECTED.
type PayoutStatus string

const (
	PayoutStatusRequested PayoutStatus = "REQUESTED"
	PayoutStatusApproved  PayoutStatus = "APPROVED"
	PayoutStatusPaid      PayoutStatus = "PAID"
	PayoutStatusRejected  PayoutStatus = "REJECTED"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusRequested,
	PayoutStatusApproved,
	PayoutStatusPaid,
	PayoutStatusRejected,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusPaid || p == PayoutStatusRejected
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (p PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	switch p {
	case PayoutStatusRequested:
		return next == PayoutStatusApproved || next == PayoutStatusRejected
	case PayoutStatusApproved:
		return next == PayoutStatusPaid
	default:
		return false
	}
}

// ParsePayoutStatus converts raw input into a PayoutStatus. The legacy
// alias PENDING maps to REQUESTED.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "PENDING" {
		return PayoutStatusRequested, nil
	}
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

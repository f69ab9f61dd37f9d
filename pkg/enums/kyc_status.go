package enums

import (
	"fmt"
	"strings"
)

// KycStatus tracks a member's identity verification state.
type KycStatus string

const (
	KycStatusNotSubmitted KycStatus = "NOT_SUBMITTED"
	KycStatusPending      KycStatus = "PENDING"
	KycStatusApproved     KycStatus = "APPROVED"
	KycStatusRejected     KycStatus = "REJECTED"
)

var validKycStatuses = []KycStatus{
	KycStatusNotSubmitted,
	KycStatusPending,
	KycStatusApproved,
	KycStatusRejected,
}

// String implements fmt.Stringer.
func (k KycStatus) String() string {
	return string(k)
}

// IsValid reports whether the value is a known KycStatus.
func (k KycStatus) IsValid() bool {
	for _, candidate := range validKycStatuses {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKycStatus converts raw input into a KycStatus.
func ParseKycStatus(value string) (KycStatus, error) {
	normalized := KycStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validKycStatuses {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid kyc status %q", value)
}

package enums

import (
	"fmt"
	"strings"
)

// MemberEventType classifies inbound events consumed from the member
// activity stream.
type MemberEventType string

const (
	MemberEventTypeRegistration MemberEventType = "REGISTRATION"
	MemberEventTypeInvestment   MemberEventType = "INVESTMENT"
	MemberEventTypeAchievement  MemberEventType = "ACHIEVEMENT"
)

var validMemberEventTypes = []MemberEventType{
	MemberEventTypeRegistration,
	MemberEventTypeInvestment,
	MemberEventTypeAchievement,
}

// String implements fmt.Stringer.
func (t MemberEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known MemberEventType.
func (t MemberEventType) IsValid() bool {
	for _, candidate := range validMemberEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMemberEventType converts raw input into a MemberEventType.
func ParseMemberEventType(value string) (MemberEventType, error) {
	normalized := MemberEventType(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validMemberEventTypes {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member event type %q", value)
}

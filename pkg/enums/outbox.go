package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateMember          OutboxAggregateType = "member"
	AggregateWallet          OutboxAggregateType = "wallet"
	AggregateCommissionEntry OutboxAggregateType = "commission_entry"
	AggregatePayoutRequest   OutboxAggregateType = "payout_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMember,
	AggregateWallet,
	AggregateCommissionEntry,
	AggregatePayoutRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventMemberPlaced        OutboxEventType = "member_placed"
	EventCommissionCredited  OutboxEventType = "commission_credited"
	EventBinaryMatchSettled  OutboxEventType = "binary_match_settled"
	EventRankAchieved        OutboxEventType = "rank_achieved"
	EventPayoutRequested     OutboxEventType = "payout_requested"
	EventPayoutApproved      OutboxEventType = "payout_approved"
	EventPayoutPaid          OutboxEventType = "payout_paid"
	EventPayoutRejected      OutboxEventType = "payout_rejected"
	EventPayoutAmountAdjusted OutboxEventType = "payout_amount_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventMemberPlaced,
	EventCommissionCredited,
	EventBinaryMatchSettled,
	EventRankAchieved,
	EventPayoutRequested,
	EventPayoutApproved,
	EventPayoutPaid,
	EventPayoutRejected,
	EventPayoutAmountAdjusted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

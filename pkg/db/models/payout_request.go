package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// PayoutRequest is a member withdrawal moving through the admin review
// state machine. RequestedAmount is debited from the wallet up front;
// NetAmount = RequestedAmount - AdminCharge - TDSAmount is what the member
// receives once the request is paid.
type PayoutRequest struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID        uuid.UUID          `gorm:"column:member_id;type:uuid;not null;index"`
	Status          enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'REQUESTED';index"`
	Method          enums.PayoutMethod `gorm:"column:method;type:text;not null"`
	RequestedAmount decimal.Decimal    `gorm:"column:requested_amount;type:numeric(18,2);not null"`
	AdminCharge     decimal.Decimal    `gorm:"column:admin_charge;type:numeric(18,2);not null"`
	TDSAmount       decimal.Decimal    `gorm:"column:tds_amount;type:numeric(18,2);not null;default:0"`
	NetAmount       decimal.Decimal    `gorm:"column:net_amount;type:numeric(18,2);not null"`
	AccountDetails  string             `gorm:"column:account_details;type:text;not null"`
	Remarks         *string            `gorm:"column:remarks;type:text"`
	TransactionID   *string            `gorm:"column:transaction_id;type:text"`
	DecidedBy       *uuid.UUID         `gorm:"column:decided_by;type:uuid"`
	DecidedAt       *time.Time         `gorm:"column:decided_at"`
	PaidAt          *time.Time         `gorm:"column:paid_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// WalletTransaction is one append-only row in a wallet's movement log.
// BalanceBefore and BalanceAfter snapshot the touched bucket around the
// movement so audits never need to replay from genesis.
type WalletTransaction struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID      uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index"`
	MemberID      uuid.UUID                   `gorm:"column:member_id;type:uuid;not null;index"`
	Type          enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	Bucket        enums.WalletBucket          `gorm:"column:bucket;type:text;not null"`
	Amount        decimal.Decimal             `gorm:"column:amount;type:numeric(18,2);not null"`
	BalanceBefore decimal.Decimal             `gorm:"column:balance_before;type:numeric(18,2);not null"`
	BalanceAfter  decimal.Decimal             `gorm:"column:balance_after;type:numeric(18,2);not null"`
	Reference     string                      `gorm:"column:reference;type:text;not null"`
	Description   string                      `gorm:"column:description;type:text"`
	Metadata      json.RawMessage             `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// CommissionEntry records one earned commission. The unique index over
// (source_event_id, type, member_id, level) makes event replays a no-op.
type CommissionEntry struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID      uuid.UUID            `gorm:"column:member_id;type:uuid;not null;index;uniqueIndex:uq_commission_dedupe"`
	SourceEventID string               `gorm:"column:source_event_id;type:text;not null;uniqueIndex:uq_commission_dedupe"`
	Type          enums.CommissionType `gorm:"column:type;type:text;not null;uniqueIndex:uq_commission_dedupe"`
	Level         int                  `gorm:"column:level;not null;default:0;uniqueIndex:uq_commission_dedupe"`
	SourceMemberID *uuid.UUID          `gorm:"column:source_member_id;type:uuid"`
	BaseAmount    decimal.Decimal      `gorm:"column:base_amount;type:numeric(18,2);not null"`
	Rate          decimal.Decimal      `gorm:"column:rate;type:numeric(8,4);not null"`
	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(18,2);not null"`
	Description   string               `gorm:"column:description;type:text"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime;index"`
}

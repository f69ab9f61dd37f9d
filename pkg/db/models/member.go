package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// Member is a node in the binary placement tree. SponsorID follows the
// referral relationship; PlacementParentID and PlacementSide pin the node's
// physical slot in the tree and never change after placement.
type Member struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferralCode      string               `gorm:"column:referral_code;type:text;not null;uniqueIndex"`
	DisplayName       string               `gorm:"column:display_name;type:text;not null"`
	SponsorID         *uuid.UUID           `gorm:"column:sponsor_id;type:uuid;index"`
	PlacementParentID *uuid.UUID           `gorm:"column:placement_parent_id;type:uuid;uniqueIndex:uq_members_placement_slot"`
	PlacementSide     *enums.PlacementSide `gorm:"column:placement_side;type:text;uniqueIndex:uq_members_placement_slot"`
	LeftChildID       *uuid.UUID           `gorm:"column:left_child_id;type:uuid"`
	RightChildID      *uuid.UUID           `gorm:"column:right_child_id;type:uuid"`
	Depth             int                  `gorm:"column:depth;not null;default:0"`
	Rank              enums.Rank           `gorm:"column:rank;type:text;not null;default:'ASSOCIATE'"`
	KycStatus         enums.KycStatus      `gorm:"column:kyc_status;type:text;not null;default:'NOT_SUBMITTED'"`
	LeftBV            decimal.Decimal      `gorm:"column:left_bv;type:numeric(18,2);not null;default:0"`
	RightBV           decimal.Decimal      `gorm:"column:right_bv;type:numeric(18,2);not null;default:0"`
	PersonalBV        decimal.Decimal      `gorm:"column:personal_bv;type:numeric(18,2);not null;default:0"`
	IsActive          bool                 `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// LevelCommissionRule configures the level-commission rate table. A level
// with no row pays nothing; RequiredRank gates eligibility per level.
type LevelCommissionRule struct {
	Level        int             `gorm:"column:level;primaryKey"`
	Rate         decimal.Decimal `gorm:"column:rate;type:numeric(8,4);not null"`
	RequiredRank enums.Rank      `gorm:"column:required_rank;type:text;not null;default:'ASSOCIATE'"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

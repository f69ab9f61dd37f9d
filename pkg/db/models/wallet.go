package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a member's earning balances. Every mutation goes through the
// ledger service under a row lock and appends a WalletTransaction, so the
// balances are always reconstructible from the transaction log.
type Wallet struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MemberID            uuid.UUID       `gorm:"column:member_id;type:uuid;not null;uniqueIndex"`
	CommissionBalance   decimal.Decimal `gorm:"column:commission_balance;type:numeric(18,2);not null;default:0"`
	RentalIncomeBalance decimal.Decimal `gorm:"column:rental_income_balance;type:numeric(18,2);not null;default:0"`
	ROIBalance          decimal.Decimal `gorm:"column:roi_balance;type:numeric(18,2);not null;default:0"`
	LockedBalance       decimal.Decimal `gorm:"column:locked_balance;type:numeric(18,2);not null;default:0"`
	TotalWithdrawn      decimal.Decimal `gorm:"column:total_withdrawn;type:numeric(18,2);not null;default:0"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableBalance is the sum of the spendable buckets minus locked funds.
func (w Wallet) AvailableBalance() decimal.Decimal {
	return w.CommissionBalance.
		Add(w.RentalIncomeBalance).
		Add(w.ROIBalance).
		Sub(w.LockedBalance)
}

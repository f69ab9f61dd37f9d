package payout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
)

func setupPayoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS payout_requests (
  id TEXT PRIMARY KEY,
  member_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'REQUESTED',
  method TEXT NOT NULL,
  requested_amount NUMERIC NOT NULL,
  admin_charge NUMERIC NOT NULL,
  tds_amount NUMERIC NOT NULL DEFAULT 0,
  net_amount NUMERIC NOT NULL,
  account_details TEXT NOT NULL,
  remarks TEXT,
  transaction_id TEXT,
  decided_by TEXT,
  decided_at DATETIME,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func newPayoutRequest(t *testing.T, repo Repository, memberID uuid.UUID, status enums.PayoutStatus, createdAt time.Time) *models.PayoutRequest {
	t.Helper()

	request := &models.PayoutRequest{
		ID:              uuid.New(),
		MemberID:        memberID,
		Status:          status,
		Method:          enums.PayoutMethodBank,
		RequestedAmount: decimal.RequireFromString("1000"),
		AdminCharge:     decimal.RequireFromString("20"),
		TDSAmount:       decimal.Zero,
		NetAmount:       decimal.RequireFromString("980"),
		AccountDetails:  "acct",
		CreatedAt:       createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), request))
	return request
}

func TestRepository_CreateAndUpdateLifecycleFields(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()

	request := newPayoutRequest(t, repo, memberID, enums.PayoutStatusRequested, time.Now().UTC())

	loaded, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusRequested, loaded.Status)
	assert.True(t, loaded.RequestedAmount.Equal(decimal.RequireFromString("1000")))

	now := time.Now().UTC()
	adminID := uuid.New()
	transactionID := "utr-42"
	loaded.Status = enums.PayoutStatusPaid
	loaded.DecidedBy = &adminID
	loaded.DecidedAt = &now
	loaded.TransactionID = &transactionID
	loaded.PaidAt = &now
	require.NoError(t, repo.Save(context.Background(), loaded))

	reloaded, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusPaid, reloaded.Status)
	require.NotNil(t, reloaded.TransactionID)
	assert.Equal(t, "utr-42", *reloaded.TransactionID)
	require.NotNil(t, reloaded.DecidedBy)
	assert.Equal(t, adminID, *reloaded.DecidedBy)
}

func TestRepository_ListFiltersAndPaginates(t *testing.T) {
	db := setupPayoutTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()
	other := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		newPayoutRequest(t, repo, memberID, enums.PayoutStatusRequested, base.Add(time.Duration(i)*time.Minute))
	}
	newPayoutRequest(t, repo, memberID, enums.PayoutStatusPaid, base.Add(10*time.Minute))
	newPayoutRequest(t, repo, other, enums.PayoutStatusRequested, base.Add(11*time.Minute))

	requested := enums.PayoutStatusRequested
	first, cursor, err := repo.List(context.Background(), listPayoutsParams{
		MemberID: &memberID,
		Status:   &requested,
		Limit:    2,
	})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, cursor)

	second, next, err := repo.List(context.Background(), listPayoutsParams{
		MemberID: &memberID,
		Status:   &requested,
		Limit:    2,
		Cursor:   cursor,
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Nil(t, next)

	paid := enums.PayoutStatusPaid
	queue, _, err := repo.List(context.Background(), listPayoutsParams{Status: &paid, Limit: 10})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, memberID, queue[0].MemberID)
}

package commission

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

func setupCommissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	members := `
CREATE TABLE IF NOT EXISTS members (
  id TEXT PRIMARY KEY,
  referral_code TEXT NOT NULL UNIQUE,
  display_name TEXT,
  sponsor_id TEXT,
  placement_parent_id TEXT,
  placement_side TEXT,
  left_child_id TEXT,
  right_child_id TEXT,
  depth INTEGER NOT NULL DEFAULT 0,
  rank TEXT NOT NULL DEFAULT 'ASSOCIATE',
  kyc_status TEXT NOT NULL DEFAULT 'PENDING',
  left_bv NUMERIC NOT NULL DEFAULT 0,
  right_bv NUMERIC NOT NULL DEFAULT 0,
  personal_bv NUMERIC NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	entries := `
CREATE TABLE IF NOT EXISTS commission_entries (
  id TEXT PRIMARY KEY,
  member_id TEXT NOT NULL,
  source_event_id TEXT NOT NULL,
  type TEXT NOT NULL,
  level INTEGER NOT NULL DEFAULT 0,
  source_member_id TEXT,
  base_amount NUMERIC NOT NULL,
  rate NUMERIC NOT NULL,
  amount NUMERIC NOT NULL,
  description TEXT,
  created_at DATETIME,
  UNIQUE (member_id, source_event_id, type, level)
);`
	require.NoError(t, db.Exec(members).Error)
	require.NoError(t, db.Exec(entries).Error)
	return db
}

func insertEntry(t *testing.T, repo Repository, memberID uuid.UUID, commissionType enums.CommissionType, amount string, createdAt time.Time) *models.CommissionEntry {
	t.Helper()

	entry := &models.CommissionEntry{
		ID:            uuid.New(),
		MemberID:      memberID,
		SourceEventID: uuid.NewString(),
		Type:          commissionType,
		BaseAmount:    decimal.RequireFromString(amount),
		Rate:          decimal.RequireFromString("0.10"),
		Amount:        decimal.RequireFromString(amount),
		CreatedAt:     createdAt,
	}
	require.NoError(t, repo.CreateEntry(context.Background(), entry))
	return entry
}

func TestRepository_CreateEntryDedupeIndex(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()

	entry := &models.CommissionEntry{
		ID:            uuid.New(),
		MemberID:      memberID,
		SourceEventID: "evt-1",
		Type:          enums.CommissionTypeDirect,
		BaseAmount:    decimal.RequireFromString("1000"),
		Rate:          decimal.RequireFromString("0.02"),
		Amount:        decimal.RequireFromString("20"),
	}
	require.NoError(t, repo.CreateEntry(context.Background(), entry))

	duplicate := *entry
	duplicate.ID = uuid.New()
	assert.Error(t, repo.CreateEntry(context.Background(), &duplicate))

	// Same event, different type is a distinct entry.
	levelEntry := *entry
	levelEntry.ID = uuid.New()
	levelEntry.Type = enums.CommissionTypeLevel
	levelEntry.Level = 1
	assert.NoError(t, repo.CreateEntry(context.Background(), &levelEntry))
}

func TestRepository_EntryExists(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()

	entry := &models.CommissionEntry{
		ID:            uuid.New(),
		MemberID:      memberID,
		SourceEventID: "evt-exists",
		Type:          enums.CommissionTypeDirect,
		BaseAmount:    decimal.RequireFromString("1000"),
		Rate:          decimal.RequireFromString("0.02"),
		Amount:        decimal.RequireFromString("20"),
	}
	require.NoError(t, repo.CreateEntry(context.Background(), entry))

	exists, err := repo.EntryExists(context.Background(), memberID, "evt-exists", enums.CommissionTypeDirect, 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EntryExists(context.Background(), memberID, "evt-exists", enums.CommissionTypeLevel, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.EntryExists(context.Background(), uuid.New(), "evt-exists", enums.CommissionTypeDirect, 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_SumBinarySince(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	insertEntry(t, repo, memberID, enums.CommissionTypeBinary, "4000", startOfDay.Add(2*time.Hour))
	insertEntry(t, repo, memberID, enums.CommissionTypeBinary, "1500", startOfDay.Add(4*time.Hour))
	insertEntry(t, repo, memberID, enums.CommissionTypeBinary, "9000", startOfDay.Add(-6*time.Hour))
	insertEntry(t, repo, memberID, enums.CommissionTypeDirect, "777", startOfDay.Add(time.Hour))
	insertEntry(t, repo, uuid.New(), enums.CommissionTypeBinary, "123", startOfDay.Add(time.Hour))

	total, err := repo.SumBinarySince(context.Background(), memberID, startOfDay)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("5500")), "total = %s", total)
}

func TestRepository_ListByMemberPaginates(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		insertEntry(t, repo, memberID, enums.CommissionTypeLevel, "100", base.Add(time.Duration(i)*time.Minute))
	}

	first, cursor, err := repo.ListByMember(context.Background(), listEntriesParams{MemberID: memberID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, cursor)

	second, next, err := repo.ListByMember(context.Background(), listEntriesParams{MemberID: memberID, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Nil(t, next)
	assert.True(t, first[0].CreatedAt.After(second[0].CreatedAt))
}

func TestRepository_UpdateMemberRank(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewRepository(db)
	memberID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO members (id, referral_code, rank, kyc_status, is_active) VALUES (?, ?, 'ASSOCIATE', 'APPROVED', 1)`,
		memberID.String(), "CODE-1",
	).Error)

	require.NoError(t, repo.UpdateMemberRank(context.Background(), memberID, enums.RankGold))

	member, err := repo.GetMember(context.Background(), memberID)
	require.NoError(t, err)
	assert.Equal(t, enums.RankGold, member.Rank)

	ids, err := repo.ListActiveMemberIDs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, memberID)
}

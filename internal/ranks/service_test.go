package ranks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/enums"
)

func setupRanksTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
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
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS level_commission_rules (
  level INTEGER PRIMARY KEY,
  rate NUMERIC NOT NULL,
  required_rank TEXT NOT NULL DEFAULT 'ASSOCIATE',
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	return db
}

func TestService_RankOf(t *testing.T) {
	db := setupRanksTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	memberID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO members (id, referral_code, rank) VALUES (?, ?, 'PLATINUM')`,
		memberID.String(), "RANK-OF-1",
	).Error)

	rank, err := svc.RankOf(context.Background(), memberID)
	require.NoError(t, err)
	assert.Equal(t, enums.RankPlatinum, rank)

	_, err = svc.RankOf(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestService_LevelRuleMissingPaysNothing(t *testing.T) {
	db := setupRanksTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	require.NoError(t, db.Exec(
		`INSERT INTO level_commission_rules (level, rate, required_rank) VALUES (2, 0.005, 'SILVER')`,
	).Error)

	rule, err := svc.LevelRule(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.True(t, rule.Rate.Equal(decimal.RequireFromString("0.005")))
	assert.Equal(t, enums.RankSilver, rule.RequiredRank)

	// A level with no configured rule is silent, not an error.
	rule, err = svc.LevelRule(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, rule)

	rule, err = svc.LevelRule(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

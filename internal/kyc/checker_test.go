package kyc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
)

func setupKycTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func TestChecker_Status(t *testing.T) {
	db := setupKycTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	memberID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO members (id, referral_code, kyc_status) VALUES (?, ?, 'APPROVED')`,
		memberID.String(), "KYC-1",
	).Error)

	status, err := checker.Status(context.Background(), memberID)
	require.NoError(t, err)
	assert.Equal(t, enums.KycStatusApproved, status)

	_, err = checker.Status(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

package commission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Repository persists commission entries and the member lookups the engine
// needs while walking the sponsor chain.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.CommissionEntry) error
	// EntryExists reports whether a commission entry with the given dedupe
	// identity was already paid.
	EntryExists(ctx context.Context, memberID uuid.UUID, sourceEventID string, commissionType enums.CommissionType, level int) (bool, error)
	GetMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error)
	UpdateMemberRank(ctx context.Context, memberID uuid.UUID, rank enums.Rank) error
	// SumBinarySince totals BINARY commission credited to the member at or
	// after the given instant. Used to enforce the daily cap.
	SumBinarySince(ctx context.Context, memberID uuid.UUID, since time.Time) (decimal.Decimal, error)
	ListActiveMemberIDs(ctx context.Context) ([]uuid.UUID, error)
	ListByMember(ctx context.Context, params listEntriesParams) ([]models.CommissionEntry, *pagination.Cursor, error)
}

type listEntriesParams struct {
	MemberID uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateEntry(ctx context.Context, entry *models.CommissionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) EntryExists(ctx context.Context, memberID uuid.UUID, sourceEventID string, commissionType enums.CommissionType, level int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CommissionEntry{}).
		Where("member_id = ? AND source_event_id = ? AND type = ? AND level = ?",
			memberID, sourceEventID, commissionType, level).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) GetMember(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", memberID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) UpdateMemberRank(ctx context.Context, memberID uuid.UUID, rank enums.Rank) error {
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		Update("rank", rank).Error
}

func (r *repositoryImpl) SumBinarySince(ctx context.Context, memberID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.CommissionEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("member_id = ? AND type = ? AND created_at >= ?", memberID, enums.CommissionTypeBinary, since).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repositoryImpl) ListActiveMemberIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repositoryImpl) ListByMember(ctx context.Context, params listEntriesParams) ([]models.CommissionEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.CommissionEntry{}).
		Where("member_id = ?", params.MemberID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.CommissionEntry
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > normalized {
		next := entries[normalized]
		entries = entries[:normalized]
		return entries, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return entries, nil, nil
}

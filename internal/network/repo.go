package network

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terravest/terravest-backend/pkg/db/models"
)

// Repository manages persistence for the placement tree.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	// GetByIDForUpdate takes a row lock; callers must be inside a
	// transaction. Placement and BV walks serialize on these locks.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Member, error)
	GetRoot(ctx context.Context) (*models.Member, error)
	Save(ctx context.Context, member *models.Member) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Member, error)
	CountSubtree(ctx context.Context, rootID uuid.UUID) (int64, error)
	ListAll(ctx context.Context) ([]models.Member, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a tree repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) GetRoot(ctx context.Context) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).Where("placement_parent_id IS NULL").First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) Save(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *repositoryImpl) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// CountSubtree counts the members rooted at rootID, including the root
// itself.
func (r *repositoryImpl) CountSubtree(ctx context.Context, rootID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
WITH RECURSIVE subtree AS (
    SELECT id FROM members WHERE id = ?
    UNION ALL
    SELECT m.id FROM members m
    JOIN subtree s ON m.placement_parent_id = s.id
)
SELECT COUNT(*) FROM subtree`, rootID).Scan(&count).Error
	return count, err
}

func (r *repositoryImpl) ListAll(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

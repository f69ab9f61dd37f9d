package payout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Repository persists payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	Save(ctx context.Context, request *models.PayoutRequest) error
	List(ctx context.Context, params listPayoutsParams) ([]models.PayoutRequest, *pagination.Cursor, error)
}

type listPayoutsParams struct {
	MemberID *uuid.UUID
	Status   *enums.PayoutStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) Save(ctx context.Context, request *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listPayoutsParams) ([]models.PayoutRequest, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if params.MemberID != nil {
		query = query.Where("member_id = ?", *params.MemberID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var requests []models.PayoutRequest
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, nil, err
	}

	if len(requests) > normalized {
		next := requests[normalized]
		requests = requests[:normalized]
		return requests, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return requests, nil, nil
}

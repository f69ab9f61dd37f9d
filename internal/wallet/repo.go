package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Repository manages persistence for wallets and their transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByMemberID(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error)
	// GetByMemberIDForUpdate takes a row lock; callers must be inside a
	// transaction.
	GetByMemberIDForUpdate(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
	AppendTransaction(ctx context.Context, row *models.WalletTransaction) error
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listTransactionsParams struct {
	MemberID uuid.UUID
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repositoryImpl) GetByMemberID(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repositoryImpl) GetByMemberIDForUpdate(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repositoryImpl) Save(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Save(wallet).Error
}

func (r *repositoryImpl) AppendTransaction(ctx context.Context, row *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repositoryImpl) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("member_id = ?", params.MemberID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/metrics"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Service owns every wallet balance mutation. Mutations require an open
// transaction so the balance update and its log row commit together.
type Service interface {
	EnsureWallet(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	LockFunds(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	UnlockFunds(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error)
	// RecordWithdrawal adjusts the lifetime withdrawn counter by delta,
	// which may be negative when a rejected payout is refunded.
	RecordWithdrawal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta decimal.Decimal) error
	GetBalance(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, *pagination.Cursor, error)
}

// MovementInput describes a single wallet movement.
type MovementInput struct {
	MemberID    uuid.UUID
	Bucket      enums.WalletBucket
	Amount      decimal.Decimal
	Reference   string
	Description string
	Metadata    json.RawMessage
}

type service struct {
	repo    Repository
	metrics *metrics.WalletMetrics
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository, walletMetrics *metrics.WalletMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo, metrics: walletMetrics}, nil
}

func (s *service) EnsureWallet(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*models.Wallet, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.GetByMemberID(ctx, memberID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	wallet = &models.Wallet{MemberID: memberID}
	if err := repo.Create(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	row, err := s.move(ctx, tx, enums.WalletTransactionTypeCredit, input)
	if err != nil {
		return nil, err
	}
	s.metrics.IncCredit(input.Bucket.String())
	return row, nil
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	row, err := s.move(ctx, tx, enums.WalletTransactionTypeDebit, input)
	if err != nil {
		return nil, err
	}
	s.metrics.IncDebit(input.Bucket.String())
	return row, nil
}

func (s *service) LockFunds(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	return s.move(ctx, tx, enums.WalletTransactionTypeLock, input)
}

func (s *service) UnlockFunds(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletTransaction, error) {
	return s.move(ctx, tx, enums.WalletTransactionTypeUnlock, input)
}

func (s *service) move(ctx context.Context, tx *gorm.DB, movement enums.WalletTransactionType, input MovementInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !input.Bucket.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid wallet bucket %q", input.Bucket))
	}
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.GetByMemberIDForUpdate(ctx, input.MemberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet row")
	}

	before, after, err := applyMovement(wallet, movement, input.Bucket, input.Amount)
	if err != nil {
		return nil, err
	}

	if err := repo.Save(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}

	row := &models.WalletTransaction{
		WalletID:      wallet.ID,
		MemberID:      wallet.MemberID,
		Type:          movement,
		Bucket:        input.Bucket,
		Amount:        input.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     input.Reference,
		Description:   input.Description,
		Metadata:      input.Metadata,
	}
	if err := repo.AppendTransaction(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
	}
	return row, nil
}

// applyMovement mutates the wallet in place and returns the before/after
// snapshot of the touched balance. Credits and debits act on the bucket;
// lock and unlock act on the locked balance.
func applyMovement(wallet *models.Wallet, movement enums.WalletTransactionType, bucket enums.WalletBucket, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch movement {
	case enums.WalletTransactionTypeCredit:
		before := bucketBalance(wallet, bucket)
		setBucketBalance(wallet, bucket, before.Add(amount))
		return before, bucketBalance(wallet, bucket), nil

	case enums.WalletTransactionTypeDebit:
		before := bucketBalance(wallet, bucket)
		// Locked funds are spoken for, so the debit must clear both the
		// bucket and the available balance.
		if before.LessThan(amount) || wallet.AvailableBalance().LessThan(amount) {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance").
				WithDetails(map[string]any{
					"bucket":    bucket.String(),
					"balance":   before.String(),
					"available": wallet.AvailableBalance().String(),
					"requested": amount.String(),
				})
		}
		setBucketBalance(wallet, bucket, before.Sub(amount))
		return before, bucketBalance(wallet, bucket), nil

	case enums.WalletTransactionTypeLock:
		if wallet.AvailableBalance().LessThan(amount) {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance").
				WithDetails(map[string]any{
					"available": wallet.AvailableBalance().String(),
					"requested": amount.String(),
				})
		}
		before := wallet.LockedBalance
		wallet.LockedBalance = before.Add(amount)
		return before, wallet.LockedBalance, nil

	case enums.WalletTransactionTypeUnlock:
		before := wallet.LockedBalance
		if before.LessThan(amount) {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance").
				WithDetails(map[string]any{
					"locked":    before.String(),
					"requested": amount.String(),
				})
		}
		wallet.LockedBalance = before.Sub(amount)
		return before, wallet.LockedBalance, nil

	default:
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported movement %q", movement))
	}
}

func bucketBalance(wallet *models.Wallet, bucket enums.WalletBucket) decimal.Decimal {
	switch bucket {
	case enums.WalletBucketRentalIncome:
		return wallet.RentalIncomeBalance
	case enums.WalletBucketROI:
		return wallet.ROIBalance
	default:
		return wallet.CommissionBalance
	}
}

func setBucketBalance(wallet *models.Wallet, bucket enums.WalletBucket, value decimal.Decimal) {
	switch bucket {
	case enums.WalletBucketRentalIncome:
		wallet.RentalIncomeBalance = value
	case enums.WalletBucketROI:
		wallet.ROIBalance = value
	default:
		wallet.CommissionBalance = value
	}
}

func (s *service) RecordWithdrawal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta decimal.Decimal) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if delta.IsZero() {
		return nil
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.GetByMemberIDForUpdate(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet row")
	}

	next := wallet.TotalWithdrawn.Add(delta)
	if next.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "total withdrawn cannot go negative").
			WithDetails(map[string]any{
				"total_withdrawn": wallet.TotalWithdrawn.String(),
				"delta":           delta.String(),
			})
	}
	wallet.TotalWithdrawn = next
	if err := repo.Save(ctx, wallet); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wallet")
	}
	return nil
}

func (s *service) GetBalance(ctx context.Context, memberID uuid.UUID) (*models.Wallet, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	wallet, err := s.repo.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, *pagination.Cursor, error) {
	if memberID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	return s.repo.ListTransactions(ctx, listTransactionsParams{
		MemberID: memberID,
		Limit:    params.Limit,
		Cursor:   cursor,
	})
}

package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/internal/kyc"
	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/metrics"
	"github.com/terravest/terravest-backend/pkg/outbox"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Walleter is the slice of the wallet service the payout engine depends on.
type Walleter interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletTransaction, error)
	RecordWithdrawal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta decimal.Decimal) error
}

// Emitter appends domain events to the transactional outbox.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service moves withdrawal requests through the review state machine.
// The requested amount leaves the wallet when the request is created, so
// a pending request can never spend funds twice; a rejection refunds it.
type Service interface {
	RequestPayout(ctx context.Context, input RequestInput) (*models.PayoutRequest, error)
	// AdjustAmount changes the requested amount while the request is
	// still under review, settling the difference against the wallet.
	AdjustAmount(ctx context.Context, input AdjustInput) (*models.PayoutRequest, error)
	Approve(ctx context.Context, input DecisionInput) (*models.PayoutRequest, error)
	Reject(ctx context.Context, input DecisionInput) (*models.PayoutRequest, error)
	MarkPaid(ctx context.Context, input PaidInput) (*models.PayoutRequest, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListByMember(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error)
	// ListQueue lists requests for admin review, optionally narrowed to a
	// single status or member.
	ListQueue(ctx context.Context, filter QueueFilter, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error)
}

// QueueFilter narrows the admin review queue. Nil fields match everything.
type QueueFilter struct {
	Status   *enums.PayoutStatus
	MemberID *uuid.UUID
}

// RequestInput is a member withdrawal request.
type RequestInput struct {
	MemberID       uuid.UUID
	Amount         decimal.Decimal
	Method         enums.PayoutMethod
	AccountDetails string
}

// AdjustInput changes the amount of a request under review.
type AdjustInput struct {
	PayoutID  uuid.UUID
	NewAmount decimal.Decimal
	AdminID   uuid.UUID
	Remarks   string
}

// DecisionInput approves or rejects a request.
type DecisionInput struct {
	PayoutID uuid.UUID
	AdminID  uuid.UUID
	Remarks  string
}

// PaidInput records the completed transfer for an approved request.
type PaidInput struct {
	PayoutID      uuid.UUID
	AdminID       uuid.UUID
	TransactionID string
}

type service struct {
	db      TxRunner
	repo    Repository
	wallets Walleter
	kyc     kyc.Checker
	outbox  Emitter
	cfg     config.PayoutConfig
	metrics *metrics.PayoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the payout engine.
func NewService(
	db TxRunner,
	repo Repository,
	walletSvc Walleter,
	kycChecker kyc.Checker,
	outboxSvc Emitter,
	cfg config.PayoutConfig,
	payoutMetrics *metrics.PayoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if kycChecker == nil {
		return nil, fmt.Errorf("kyc checker required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		db:      db,
		repo:    repo,
		wallets: walletSvc,
		kyc:     kycChecker,
		outbox:  outboxSvc,
		cfg:     cfg,
		metrics: payoutMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) RequestPayout(ctx context.Context, input RequestInput) (*models.PayoutRequest, error) {
	if input.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout method").
			WithDetails(map[string]any{"method": string(input.Method)})
	}
	if input.AccountDetails == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account details are required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payout amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if input.Amount.LessThan(s.cfg.MinAmount) || input.Amount.GreaterThan(s.cfg.MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount out of bounds").
			WithDetails(map[string]any{
				"amount": input.Amount.String(),
				"min":    s.cfg.MinAmount.String(),
				"max":    s.cfg.MaxAmount.String(),
			})
	}

	status, err := s.kyc.Status(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	if status != enums.KycStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeKycRequired, "kyc approval required before withdrawal").
			WithDetails(map[string]any{"kycStatus": string(status)})
	}

	adminCharge := input.Amount.Mul(s.cfg.AdminChargeRate).Round(2)
	tds := decimal.Zero
	request := &models.PayoutRequest{
		ID:              uuid.New(),
		MemberID:        input.MemberID,
		Status:          enums.PayoutStatusRequested,
		Method:          input.Method,
		RequestedAmount: input.Amount,
		AdminCharge:     adminCharge,
		TDSAmount:       tds,
		NetAmount:       input.Amount.Sub(adminCharge).Sub(tds),
		AccountDetails:  input.AccountDetails,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.wallets.Debit(ctx, tx, s.movement(request, input.Amount, "Payout request")); err != nil {
			return err
		}
		if err := s.wallets.RecordWithdrawal(ctx, tx, input.MemberID, input.Amount); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
		}
		return s.emit(ctx, tx, enums.EventPayoutRequested, request)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncRequest()
	return request, nil
}

func (s *service) AdjustAmount(ctx context.Context, input AdjustInput) (*models.PayoutRequest, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if !input.NewAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payout amount must be positive").
			WithDetails(map[string]any{"amount": input.NewAmount.String()})
	}
	if input.NewAmount.LessThan(s.cfg.MinAmount) || input.NewAmount.GreaterThan(s.cfg.MaxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount out of bounds").
			WithDetails(map[string]any{
				"amount": input.NewAmount.String(),
				"min":    s.cfg.MinAmount.String(),
				"max":    s.cfg.MaxAmount.String(),
			})
	}

	var request *models.PayoutRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.lockRequest(ctx, tx, input.PayoutID)
		if err != nil {
			return err
		}
		if request.Status != enums.PayoutStatusRequested {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "payout request is no longer adjustable").
				WithDetails(map[string]any{"status": string(request.Status)})
		}

		delta := input.NewAmount.Sub(request.RequestedAmount)
		if delta.IsZero() {
			return nil
		}
		if delta.IsPositive() {
			if _, err := s.wallets.Debit(ctx, tx, s.movement(request, delta, "Payout amount adjustment")); err != nil {
				return err
			}
		} else {
			if _, err := s.wallets.Credit(ctx, tx, s.movement(request, delta.Neg(), "Payout amount adjustment")); err != nil {
				return err
			}
		}
		if err := s.wallets.RecordWithdrawal(ctx, tx, request.MemberID, delta); err != nil {
			return err
		}

		request.RequestedAmount = input.NewAmount
		request.AdminCharge = input.NewAmount.Mul(s.cfg.AdminChargeRate).Round(2)
		request.NetAmount = input.NewAmount.Sub(request.AdminCharge).Sub(request.TDSAmount)
		if input.Remarks != "" {
			request.Remarks = &input.Remarks
		}
		if err := s.repo.WithTx(tx).Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout request")
		}
		return s.emit(ctx, tx, enums.EventPayoutAmountAdjusted, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Approve(ctx context.Context, input DecisionInput) (*models.PayoutRequest, error) {
	return s.decide(ctx, input, enums.PayoutStatusApproved, enums.EventPayoutApproved)
}

func (s *service) Reject(ctx context.Context, input DecisionInput) (*models.PayoutRequest, error) {
	return s.decide(ctx, input, enums.PayoutStatusRejected, enums.EventPayoutRejected)
}

func (s *service) decide(ctx context.Context, input DecisionInput, next enums.PayoutStatus, eventType enums.OutboxEventType) (*models.PayoutRequest, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}

	var request *models.PayoutRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.lockRequest(ctx, tx, input.PayoutID)
		if err != nil {
			return err
		}
		if request.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "payout request already finalized").
				WithDetails(map[string]any{"status": string(request.Status)})
		}
		if !request.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout transition disallowed").
				WithDetails(map[string]any{"from": string(request.Status), "to": string(next)})
		}

		if next == enums.PayoutStatusRejected {
			// Refund the full requested amount; admin charge was never
			// taken out of the wallet, only out of the eventual payout.
			if _, err := s.wallets.Credit(ctx, tx, s.movement(request, request.RequestedAmount, "Payout rejected, funds returned")); err != nil {
				return err
			}
			if err := s.wallets.RecordWithdrawal(ctx, tx, request.MemberID, request.RequestedAmount.Neg()); err != nil {
				return err
			}
		}

		now := s.now()
		request.Status = next
		request.DecidedBy = &input.AdminID
		request.DecidedAt = &now
		if input.Remarks != "" {
			request.Remarks = &input.Remarks
		}
		if err := s.repo.WithTx(tx).Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout request")
		}
		return s.emit(ctx, tx, eventType, request)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncDecision(string(next))
	return request, nil
}

func (s *service) MarkPaid(ctx context.Context, input PaidInput) (*models.PayoutRequest, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	var request *models.PayoutRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = s.lockRequest(ctx, tx, input.PayoutID)
		if err != nil {
			return err
		}
		if request.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeAlreadyFinalized, "payout request already finalized").
				WithDetails(map[string]any{"status": string(request.Status)})
		}
		if !request.Status.CanTransitionTo(enums.PayoutStatusPaid) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout must be approved before it is paid").
				WithDetails(map[string]any{"status": string(request.Status)})
		}

		now := s.now()
		request.Status = enums.PayoutStatusPaid
		request.TransactionID = &input.TransactionID
		request.PaidAt = &now
		if input.AdminID != uuid.Nil {
			request.DecidedBy = &input.AdminID
		}
		if err := s.repo.WithTx(tx).Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payout request")
		}
		return s.emit(ctx, tx, enums.EventPayoutPaid, request)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncDecision(string(enums.PayoutStatusPaid))
	return request, nil
}

func (s *service) GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
	}
	return request, nil
}

func (s *service) ListByMember(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error) {
	if memberID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	return s.list(ctx, listPayoutsParams{MemberID: &memberID, Limit: params.Limit, Cursor: cursor})
}

func (s *service) ListQueue(ctx context.Context, filter QueueFilter, params pagination.Params) ([]models.PayoutRequest, *pagination.Cursor, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	return s.list(ctx, listPayoutsParams{Status: filter.Status, MemberID: filter.MemberID, Limit: params.Limit, Cursor: cursor})
}

func (s *service) list(ctx context.Context, params listPayoutsParams) ([]models.PayoutRequest, *pagination.Cursor, error) {
	requests, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout requests")
	}
	return requests, next, nil
}

func (s *service) lockRequest(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PayoutRequest, error) {
	request, err := s.repo.WithTx(tx).GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
	}
	return request, nil
}

func (s *service) movement(request *models.PayoutRequest, amount decimal.Decimal, description string) wallet.MovementInput {
	metadata, _ := json.Marshal(map[string]any{"payoutRequestId": request.ID})
	return wallet.MovementInput{
		MemberID:    request.MemberID,
		Bucket:      enums.WalletBucketCommission,
		Amount:      amount,
		Reference:   request.ID.String(),
		Description: description,
		Metadata:    metadata,
	}
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, request *models.PayoutRequest) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayoutRequest,
		AggregateID:   request.ID,
		Data: map[string]any{
			"memberId":        request.MemberID,
			"status":          request.Status,
			"requestedAmount": request.RequestedAmount,
			"adminCharge":     request.AdminCharge,
			"tdsAmount":       request.TDSAmount,
			"netAmount":       request.NetAmount,
		},
	})
}

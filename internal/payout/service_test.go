package payout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/outbox"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

type fakePayoutRepo struct {
	requests map[uuid.UUID]*models.PayoutRequest
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{requests: make(map[uuid.UUID]*models.PayoutRequest)}
}

func (f *fakePayoutRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePayoutRepo) Create(ctx context.Context, request *models.PayoutRequest) error {
	clone := *request
	f.requests[request.ID] = &clone
	return nil
}

func (f *fakePayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *request
	return &clone, nil
}

func (f *fakePayoutRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return f.GetByID(ctx, id)
}

func (f *fakePayoutRepo) Save(ctx context.Context, request *models.PayoutRequest) error {
	clone := *request
	f.requests[request.ID] = &clone
	return nil
}

func (f *fakePayoutRepo) List(ctx context.Context, params listPayoutsParams) ([]models.PayoutRequest, *pagination.Cursor, error) {
	var out []models.PayoutRequest
	for _, request := range f.requests {
		if params.MemberID != nil && request.MemberID != *params.MemberID {
			continue
		}
		if params.Status != nil && request.Status != *params.Status {
			continue
		}
		out = append(out, *request)
	}
	return out, nil, nil
}

// fakeLedger tracks a single commission balance plus the lifetime
// withdrawn counter so round-trip exactness can be asserted.
type fakeLedger struct {
	balance   decimal.Decimal
	withdrawn decimal.Decimal
}

func (f *fakeLedger) Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletTransaction, error) {
	f.balance = f.balance.Add(input.Amount)
	return &models.WalletTransaction{Amount: input.Amount}, nil
}

func (f *fakeLedger) Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletTransaction, error) {
	if f.balance.LessThan(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance")
	}
	f.balance = f.balance.Sub(input.Amount)
	return &models.WalletTransaction{Amount: input.Amount}, nil
}

func (f *fakeLedger) RecordWithdrawal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta decimal.Decimal) error {
	f.withdrawn = f.withdrawn.Add(delta)
	return nil
}

type fakeKyc struct {
	status enums.KycStatus
}

func (f *fakeKyc) Status(ctx context.Context, memberID uuid.UUID) (enums.KycStatus, error) {
	return f.status, nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type testHarness struct {
	svc     Service
	repo    *fakePayoutRepo
	ledger  *fakeLedger
	kyc     *fakeKyc
	emitter *fakeEmitter
}

func newTestHarness(t *testing.T, balance string) *testHarness {
	t.Helper()
	repo := newFakePayoutRepo()
	ledger := &fakeLedger{balance: decimal.RequireFromString(balance), withdrawn: decimal.Zero}
	kycChecker := &fakeKyc{status: enums.KycStatusApproved}
	emitter := &fakeEmitter{}
	cfg := config.PayoutConfig{
		AdminChargeRate: decimal.RequireFromString("0.02"),
		MinAmount:       decimal.RequireFromString("500"),
		MaxAmount:       decimal.RequireFromString("1000000"),
	}
	svc, err := NewService(fakeTxRunner{}, repo, ledger, kycChecker, emitter, cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return &testHarness{svc: svc, repo: repo, ledger: ledger, kyc: kycChecker, emitter: emitter}
}

func (h *testHarness) request(t *testing.T, memberID uuid.UUID, amount string) *models.PayoutRequest {
	t.Helper()
	request, err := h.svc.RequestPayout(context.Background(), RequestInput{
		MemberID:       memberID,
		Amount:         decimal.RequireFromString(amount),
		Method:         enums.PayoutMethodBank,
		AccountDetails: `{"account":"0001","ifsc":"TEST0001"}`,
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}
	return request
}

func TestService_RequestPayout_DebitsAndComputesCharges(t *testing.T) {
	h := newTestHarness(t, "50000")
	memberID := uuid.New()

	request := h.request(t, memberID, "10000")

	if request.Status != enums.PayoutStatusRequested {
		t.Fatalf("status = %s, want REQUESTED", request.Status)
	}
	if !request.AdminCharge.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("admin charge = %s, want 200", request.AdminCharge)
	}
	if !request.TDSAmount.IsZero() {
		t.Fatalf("tds = %s, want 0", request.TDSAmount)
	}
	if !request.NetAmount.Equal(decimal.RequireFromString("9800")) {
		t.Fatalf("net = %s, want 9800", request.NetAmount)
	}
	if !h.ledger.balance.Equal(decimal.RequireFromString("40000")) {
		t.Fatalf("balance = %s, want 40000", h.ledger.balance)
	}
	if !h.ledger.withdrawn.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("withdrawn = %s, want 10000", h.ledger.withdrawn)
	}
	if len(h.emitter.events) != 1 || h.emitter.events[0].EventType != enums.EventPayoutRequested {
		t.Fatalf("unexpected events: %+v", h.emitter.events)
	}
}

func TestService_RequestPayout_RequiresApprovedKyc(t *testing.T) {
	h := newTestHarness(t, "50000")
	h.kyc.status = enums.KycStatusPending

	_, err := h.svc.RequestPayout(context.Background(), RequestInput{
		MemberID:       uuid.New(),
		Amount:         decimal.RequireFromString("10000"),
		Method:         enums.PayoutMethodBank,
		AccountDetails: "acct",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeKycRequired) {
		t.Fatalf("expected KYC_REQUIRED, got %v", err)
	}
	if !h.ledger.balance.Equal(decimal.RequireFromString("50000")) {
		t.Fatal("wallet must be untouched when kyc gate fails")
	}
}

func TestService_RequestPayout_EnforcesBoundsAndBalance(t *testing.T) {
	h := newTestHarness(t, "800")
	memberID := uuid.New()

	_, err := h.svc.RequestPayout(context.Background(), RequestInput{
		MemberID:       memberID,
		Amount:         decimal.RequireFromString("100"),
		Method:         enums.PayoutMethodUPI,
		AccountDetails: "vpa@bank",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error below minimum, got %v", err)
	}

	_, err = h.svc.RequestPayout(context.Background(), RequestInput{
		MemberID:       memberID,
		Amount:         decimal.RequireFromString("900"),
		Method:         enums.PayoutMethodUPI,
		AccountDetails: "vpa@bank",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if !h.ledger.withdrawn.IsZero() {
		t.Fatal("withdrawn counter must not move on a failed request")
	}
}

func TestService_AdjustAmount_SettlesDeltaBothWays(t *testing.T) {
	h := newTestHarness(t, "50000")
	memberID := uuid.New()
	request := h.request(t, memberID, "10000")

	// Upward: debit the difference.
	adjusted, err := h.svc.AdjustAmount(context.Background(), AdjustInput{
		PayoutID:  request.ID,
		NewAmount: decimal.RequireFromString("12000"),
		AdminID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust up failed: %v", err)
	}
	if !adjusted.AdminCharge.Equal(decimal.RequireFromString("240")) {
		t.Fatalf("admin charge = %s, want 240", adjusted.AdminCharge)
	}
	if !adjusted.NetAmount.Equal(decimal.RequireFromString("11760")) {
		t.Fatalf("net = %s, want 11760", adjusted.NetAmount)
	}
	if !h.ledger.balance.Equal(decimal.RequireFromString("38000")) {
		t.Fatalf("balance = %s, want 38000", h.ledger.balance)
	}

	// Downward: refund the difference.
	adjusted, err = h.svc.AdjustAmount(context.Background(), AdjustInput{
		PayoutID:  request.ID,
		NewAmount: decimal.RequireFromString("8000"),
		AdminID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("adjust down failed: %v", err)
	}
	if !h.ledger.balance.Equal(decimal.RequireFromString("42000")) {
		t.Fatalf("balance = %s, want 42000", h.ledger.balance)
	}
	if !h.ledger.withdrawn.Equal(decimal.RequireFromString("8000")) {
		t.Fatalf("withdrawn = %s, want 8000", h.ledger.withdrawn)
	}
}

func TestService_Reject_RefundsExactly(t *testing.T) {
	h := newTestHarness(t, "50000")
	memberID := uuid.New()
	request := h.request(t, memberID, "10000")

	rejected, err := h.svc.Reject(context.Background(), DecisionInput{
		PayoutID: request.ID,
		AdminID:  uuid.New(),
		Remarks:  "bank details mismatch",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != enums.PayoutStatusRejected {
		t.Fatalf("status = %s, want REJECTED", rejected.Status)
	}
	if rejected.Remarks == nil || *rejected.Remarks != "bank details mismatch" {
		t.Fatal("expected remarks to be recorded")
	}

	// Request then reject must be a perfect round trip.
	if !h.ledger.balance.Equal(decimal.RequireFromString("50000")) {
		t.Fatalf("balance = %s, want 50000", h.ledger.balance)
	}
	if !h.ledger.withdrawn.IsZero() {
		t.Fatalf("withdrawn = %s, want 0", h.ledger.withdrawn)
	}
}

func TestService_ApprovePaidLifecycle(t *testing.T) {
	h := newTestHarness(t, "50000")
	memberID := uuid.New()
	request := h.request(t, memberID, "10000")
	adminID := uuid.New()

	// Paying before approval is a state error, not a finalization error.
	_, err := h.svc.MarkPaid(context.Background(), PaidInput{
		PayoutID:      request.ID,
		AdminID:       adminID,
		TransactionID: "utr-001",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}

	approved, err := h.svc.Approve(context.Background(), DecisionInput{PayoutID: request.ID, AdminID: adminID})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != enums.PayoutStatusApproved || approved.DecidedBy == nil {
		t.Fatalf("unexpected approved request: %+v", approved)
	}
	// Approval moves no money.
	if !h.ledger.balance.Equal(decimal.RequireFromString("40000")) {
		t.Fatalf("balance = %s, want 40000", h.ledger.balance)
	}

	paid, err := h.svc.MarkPaid(context.Background(), PaidInput{
		PayoutID:      request.ID,
		AdminID:       adminID,
		TransactionID: "utr-001",
	})
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != enums.PayoutStatusPaid || paid.TransactionID == nil || paid.PaidAt == nil {
		t.Fatalf("unexpected paid request: %+v", paid)
	}

	// Every further decision hits the finalization guard.
	_, err = h.svc.Reject(context.Background(), DecisionInput{PayoutID: request.ID, AdminID: adminID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyFinalized) {
		t.Fatalf("expected ALREADY_FINALIZED, got %v", err)
	}
	_, err = h.svc.AdjustAmount(context.Background(), AdjustInput{
		PayoutID:  request.ID,
		NewAmount: decimal.RequireFromString("9000"),
		AdminID:   adminID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyFinalized) {
		t.Fatalf("expected ALREADY_FINALIZED on adjust, got %v", err)
	}
}

func TestService_ListByMemberAndQueue(t *testing.T) {
	h := newTestHarness(t, "50000")
	memberID := uuid.New()
	other := uuid.New()
	h.request(t, memberID, "1000")
	h.request(t, memberID, "2000")
	h.request(t, other, "3000")

	mine, _, err := h.svc.ListByMember(context.Background(), memberID, pagination.Params{})
	if err != nil {
		t.Fatalf("list by member failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(mine))
	}

	requested := enums.PayoutStatusRequested
	queue, _, err := h.svc.ListQueue(context.Background(), QueueFilter{Status: &requested}, pagination.Params{})
	if err != nil {
		t.Fatalf("list queue failed: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("expected 3 queued requests, got %d", len(queue))
	}

	narrowed, _, err := h.svc.ListQueue(context.Background(), QueueFilter{Status: &requested, MemberID: &other}, pagination.Params{})
	if err != nil {
		t.Fatalf("list queue by member failed: %v", err)
	}
	if len(narrowed) != 1 {
		t.Fatalf("expected 1 queued request for member, got %d", len(narrowed))
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/internal/commission"
	"github.com/terravest/terravest-backend/internal/network"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeEventsRepo struct {
	seen map[string]bool
}

func (f *fakeEventsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeEventsRepo) MarkIfNew(ctx context.Context, eventID string, eventType enums.MemberEventType) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

type fakePlacer struct {
	placed []network.PlaceMemberInput
	err    error
}

func (f *fakePlacer) PlaceMember(ctx context.Context, tx *gorm.DB, input network.PlaceMemberInput) (*models.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, input)
	return &models.Member{ID: input.MemberID, Depth: 1}, nil
}

type fakeProvisioner struct {
	ensured []uuid.UUID
}

func (f *fakeProvisioner) EnsureWallet(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*models.Wallet, error) {
	f.ensured = append(f.ensured, memberID)
	return &models.Wallet{MemberID: memberID}, nil
}

type fakeEngine struct {
	investments  []commission.InvestmentEvent
	achievements []commission.AchievementEvent
}

func (f *fakeEngine) AwardInvestment(ctx context.Context, tx *gorm.DB, event commission.InvestmentEvent) error {
	f.investments = append(f.investments, event)
	return nil
}

func (f *fakeEngine) AwardAchievement(ctx context.Context, tx *gorm.DB, event commission.AchievementEvent) error {
	f.achievements = append(f.achievements, event)
	return nil
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeDeduper struct {
	keys    map[string]bool
	deleted []string
}

func (f *fakeDeduper) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeDeduper) Del(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeDeduper) IdempotencyKey(scope, id string) string {
	return "tv:idem:" + scope + ":" + id
}

type handlerHarness struct {
	handler *Handler
	repo    *fakeEventsRepo
	placer  *fakePlacer
	wallets *fakeProvisioner
	engine  *fakeEngine
	emitter *fakeEmitter
	deduper *fakeDeduper
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	repo := &fakeEventsRepo{seen: make(map[string]bool)}
	placer := &fakePlacer{}
	wallets := &fakeProvisioner{}
	engine := &fakeEngine{}
	emitter := &fakeEmitter{}
	deduper := &fakeDeduper{keys: make(map[string]bool)}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler, err := NewHandler(fakeTxRunner{}, repo, placer, wallets, engine, emitter, deduper, logg)
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	return &handlerHarness{
		handler: handler,
		repo:    repo,
		placer:  placer,
		wallets: wallets,
		engine:  engine,
		emitter: emitter,
		deduper: deduper,
	}
}

func marshal(t *testing.T, event MemberEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestHandler_RegistrationPlacesMemberAndOpensWallet(t *testing.T) {
	h := newHandlerHarness(t)
	memberID := uuid.New()
	sponsorID := uuid.New()

	err := h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:      "evt-reg-1",
		EventType:    "REGISTRATION",
		MemberID:     memberID,
		SponsorID:    sponsorID,
		ReferralCode: "NEW-1",
		DisplayName:  "New Member",
		Placement:    "LEFT",
	}))
	if err != nil {
		t.Fatalf("handle registration failed: %v", err)
	}

	if len(h.placer.placed) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(h.placer.placed))
	}
	placed := h.placer.placed[0]
	if placed.MemberID != memberID || placed.SponsorID != sponsorID {
		t.Fatalf("unexpected placement input: %+v", placed)
	}
	if placed.Preference != enums.PlacementPreferenceLeft {
		t.Fatalf("preference = %s, want LEFT", placed.Preference)
	}
	if len(h.wallets.ensured) != 1 || h.wallets.ensured[0] != memberID {
		t.Fatalf("expected wallet for %s, got %v", memberID, h.wallets.ensured)
	}
	if len(h.emitter.events) != 1 || h.emitter.events[0].EventType != enums.EventMemberPlaced {
		t.Fatalf("unexpected outbox events: %+v", h.emitter.events)
	}
}

func TestHandler_InvestmentDispatchesToEngine(t *testing.T) {
	h := newHandlerHarness(t)
	memberID := uuid.New()

	err := h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:   "evt-inv-1",
		EventType: "INVESTMENT",
		MemberID:  memberID,
		Amount:    decimal.RequireFromString("100000"),
	}))
	if err != nil {
		t.Fatalf("handle investment failed: %v", err)
	}
	if len(h.engine.investments) != 1 {
		t.Fatalf("expected 1 investment, got %d", len(h.engine.investments))
	}
	if !h.engine.investments[0].Amount.Equal(decimal.RequireFromString("100000")) {
		t.Fatalf("amount = %s", h.engine.investments[0].Amount)
	}
}

func TestHandler_AchievementDispatchesToEngine(t *testing.T) {
	h := newHandlerHarness(t)
	memberID := uuid.New()

	err := h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:     "evt-ach-1",
		EventType:   "ACHIEVEMENT",
		MemberID:    memberID,
		Rank:        "SILVER",
		RuleID:      "rank-silver",
		BonusAmount: decimal.RequireFromString("5000"),
	}))
	if err != nil {
		t.Fatalf("handle achievement failed: %v", err)
	}
	if len(h.engine.achievements) != 1 {
		t.Fatalf("expected 1 achievement, got %d", len(h.engine.achievements))
	}
	if h.engine.achievements[0].Rank != enums.RankSilver {
		t.Fatalf("rank = %s", h.engine.achievements[0].Rank)
	}
}

func TestHandler_DuplicateEventIsIgnored(t *testing.T) {
	h := newHandlerHarness(t)
	memberID := uuid.New()
	event := marshal(t, MemberEvent{
		EventID:   "evt-dup",
		EventType: "INVESTMENT",
		MemberID:  memberID,
		Amount:    decimal.RequireFromString("1000"),
	})

	for i := 0; i < 2; i++ {
		if err := h.handler.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("handle %d failed: %v", i, err)
		}
	}
	if len(h.engine.investments) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(h.engine.investments))
	}
}

func TestHandler_DatabaseDedupeBacksUpRedis(t *testing.T) {
	h := newHandlerHarness(t)
	memberID := uuid.New()
	// Simulate the redis key expiring while the row remains.
	h.repo.seen["evt-expired"] = true

	err := h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:   "evt-expired",
		EventType: "INVESTMENT",
		MemberID:  memberID,
		Amount:    decimal.RequireFromString("1000"),
	}))
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(h.engine.investments) != 0 {
		t.Fatal("expected no dispatch for a replayed event")
	}
}

func TestHandler_MalformedPayloadIsValidationError(t *testing.T) {
	h := newHandlerHarness(t)

	err := h.handler.HandleEvent(context.Background(), []byte("{not json"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:   "evt-bad-type",
		EventType: "SOMETHING_ELSE",
		MemberID:  uuid.New(),
	}))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestHandler_FailureReleasesFastPathKey(t *testing.T) {
	h := newHandlerHarness(t)
	h.placer.err = errors.New("deadlock detected")
	memberID := uuid.New()

	err := h.handler.HandleEvent(context.Background(), marshal(t, MemberEvent{
		EventID:   "evt-fail",
		EventType: "REGISTRATION",
		MemberID:  memberID,
	}))
	if err == nil {
		t.Fatal("expected placement error")
	}
	if len(h.deduper.deleted) != 1 {
		t.Fatalf("expected fast-path key release, got %v", h.deduper.deleted)
	}
}

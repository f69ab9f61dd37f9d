package events

import (
	"context"
	"encoding/json"
	"fmt"
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

const dedupeScope = "member-events"

// MemberEvent is the wire format of the member activity stream.
type MemberEvent struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	MemberID   uuid.UUID `json:"memberId"`
	OccurredAt time.Time `json:"occurredAt"`

	// REGISTRATION
	SponsorID    uuid.UUID `json:"sponsorId,omitempty"`
	ReferralCode string    `json:"referralCode,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	Placement    string    `json:"placement,omitempty"`

	// INVESTMENT
	Amount decimal.Decimal `json:"amount,omitempty"`

	// ACHIEVEMENT
	Rank        string          `json:"rank,omitempty"`
	RuleID      string          `json:"ruleId,omitempty"`
	BonusAmount decimal.Decimal `json:"bonusAmount,omitempty"`
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Placer is the slice of the network tree service registrations need.
type Placer interface {
	PlaceMember(ctx context.Context, tx *gorm.DB, input network.PlaceMemberInput) (*models.Member, error)
}

// WalletProvisioner opens a wallet for newly placed members.
type WalletProvisioner interface {
	EnsureWallet(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*models.Wallet, error)
}

// Engine is the slice of the commission engine the handler dispatches to.
type Engine interface {
	AwardInvestment(ctx context.Context, tx *gorm.DB, event commission.InvestmentEvent) error
	AwardAchievement(ctx context.Context, tx *gorm.DB, event commission.AchievementEvent) error
}

// Emitter appends domain events to the transactional outbox.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Deduper is a fast-path filter in front of the processed_events table.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Handler applies one member activity event to the platform state. The
// processed_events insert shares the transaction with every side effect,
// so at-least-once delivery collapses to exactly-once application.
type Handler struct {
	db        TxRunner
	repo      Repository
	placer    Placer
	wallets   WalletProvisioner
	engine    Engine
	outbox    Emitter
	deduper   Deduper
	logg      *logger.Logger
	dedupeTTL time.Duration
}

// NewHandler wires the member event handler. The deduper is optional.
func NewHandler(
	db TxRunner,
	repo Repository,
	placer Placer,
	wallets WalletProvisioner,
	engine Engine,
	outboxSvc Emitter,
	deduper Deduper,
	logg *logger.Logger,
) (*Handler, error) {
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if placer == nil {
		return nil, fmt.Errorf("network service required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if engine == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{
		db:        db,
		repo:      repo,
		placer:    placer,
		wallets:   wallets,
		engine:    engine,
		outbox:    outboxSvc,
		deduper:   deduper,
		logg:      logg,
		dedupeTTL: 24 * time.Hour,
	}, nil
}

// HandleEvent decodes and applies a raw stream message. A CodeValidation
// error marks a malformed message the caller should drop rather than
// redeliver.
func (h *Handler) HandleEvent(ctx context.Context, data []byte) error {
	var event MemberEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unmarshal member event")
	}
	if event.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id missing")
	}
	eventType, err := enums.ParseMemberEventType(event.EventType)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown event type").
			WithDetails(map[string]any{"eventType": event.EventType})
	}
	if event.MemberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id missing")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": string(eventType),
		"member_id":  event.MemberID.String(),
	})

	var dedupeKey string
	if h.deduper != nil {
		dedupeKey = h.deduper.IdempotencyKey(dedupeScope, event.EventID)
		fresh, err := h.deduper.SetNX(logCtx, dedupeKey, 1, h.dedupeTTL)
		if err != nil {
			// Redis is a pre-filter only; the database insert still dedupes.
			h.logg.Warn(logCtx, "dedupe pre-filter unavailable")
		} else if !fresh {
			h.logg.Info(logCtx, "event already processed (fast path)")
			return nil
		}
	}

	err = h.db.WithTx(logCtx, func(tx *gorm.DB) error {
		fresh, err := h.repo.WithTx(tx).MarkIfNew(logCtx, event.EventID, eventType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark event processed")
		}
		if !fresh {
			h.logg.Info(logCtx, "event already processed")
			return nil
		}
		switch eventType {
		case enums.MemberEventTypeRegistration:
			return h.handleRegistration(logCtx, tx, event)
		case enums.MemberEventTypeInvestment:
			return h.engine.AwardInvestment(logCtx, tx, commission.InvestmentEvent{
				EventID:    event.EventID,
				MemberID:   event.MemberID,
				Amount:     event.Amount,
				OccurredAt: event.OccurredAt,
			})
		case enums.MemberEventTypeAchievement:
			rank, err := enums.ParseRank(event.Rank)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown rank").
					WithDetails(map[string]any{"rank": event.Rank})
			}
			return h.engine.AwardAchievement(logCtx, tx, commission.AchievementEvent{
				EventID:     event.EventID,
				MemberID:    event.MemberID,
				Rank:        rank,
				RuleID:      event.RuleID,
				BonusAmount: event.BonusAmount,
			})
		}
		return nil
	})
	if err != nil && dedupeKey != "" {
		// Let a redelivery through the fast path.
		_ = h.deduper.Del(context.WithoutCancel(logCtx), dedupeKey)
	}
	return err
}

func (h *Handler) handleRegistration(ctx context.Context, tx *gorm.DB, event MemberEvent) error {
	preference, err := enums.ParsePlacementPreference(event.Placement)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown placement preference").
			WithDetails(map[string]any{"placement": event.Placement})
	}
	member, err := h.placer.PlaceMember(ctx, tx, network.PlaceMemberInput{
		MemberID:     event.MemberID,
		ReferralCode: event.ReferralCode,
		DisplayName:  event.DisplayName,
		SponsorID:    event.SponsorID,
		Preference:   preference,
	})
	if err != nil {
		return err
	}
	if _, err := h.wallets.EnsureWallet(ctx, tx, member.ID); err != nil {
		return err
	}
	data := map[string]any{
		"memberId": member.ID,
		"depth":    member.Depth,
	}
	if member.PlacementParentID != nil {
		data["placementParentId"] = member.PlacementParentID
	}
	if member.PlacementSide != nil {
		data["placementSide"] = member.PlacementSide
	}
	return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMemberPlaced,
		AggregateType: enums.AggregateMember,
		AggregateID:   member.ID,
		Data:          data,
	})
}

package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/internal/ranks"
	"github.com/terravest/terravest-backend/internal/wallet"
	"github.com/terravest/terravest-backend/pkg/config"
	dbpkg "github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
	"github.com/terravest/terravest-backend/pkg/metrics"
	"github.com/terravest/terravest-backend/pkg/outbox"
	"github.com/terravest/terravest-backend/pkg/pagination"
)

// Emitter appends domain events to the transactional outbox.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Networker is the slice of the network tree service the engine depends on.
type Networker interface {
	RecordVolume(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, amount decimal.Decimal) error
	MatchAndCarry(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (decimal.Decimal, error)
}

// Walleter is the slice of the wallet service the engine depends on.
type Walleter interface {
	EnsureWallet(ctx context.Context, tx *gorm.DB, memberID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletTransaction, error)
}

// Service computes and credits commission for member activity.
type Service interface {
	// AwardInvestment records the investment volume and credits DIRECT and
	// LEVEL commission along the sponsor chain. The caller owns the
	// transaction and event de-duplication.
	AwardInvestment(ctx context.Context, tx *gorm.DB, event InvestmentEvent) error
	// AwardAchievement promotes the member and credits the rank bonus.
	// Bonuses are monotonic per (member, rule); replays are a no-op.
	AwardAchievement(ctx context.Context, tx *gorm.DB, event AchievementEvent) error
	// SettleBinary runs one matching cycle for a single member: consumes
	// matched volume, credits BINARY commission up to the daily cap and
	// drops the excess.
	SettleBinary(ctx context.Context, memberID uuid.UUID, cycleID string) (*BinarySettlement, error)
	RunMatchingCycle(ctx context.Context) (*CycleResult, error)
	ListEntries(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.CommissionEntry, *pagination.Cursor, error)
}

// InvestmentEvent is a confirmed property investment by a member.
type InvestmentEvent struct {
	EventID    string
	MemberID   uuid.UUID
	Amount     decimal.Decimal
	OccurredAt time.Time
}

// AchievementEvent is a rank achievement decided by the qualification
// system. RuleID identifies the achievement rule so each bonus pays once.
type AchievementEvent struct {
	EventID     string
	MemberID    uuid.UUID
	Rank        enums.Rank
	RuleID      string
	BonusAmount decimal.Decimal
}

// BinarySettlement is the outcome of one matching cycle for one member.
type BinarySettlement struct {
	MemberID      uuid.UUID       `json:"memberId"`
	MatchedVolume decimal.Decimal `json:"matchedVolume"`
	Commission    decimal.Decimal `json:"commission"`
	Dropped       decimal.Decimal `json:"dropped"`
}

// CycleResult aggregates a full matching cycle across the member base.
type CycleResult struct {
	CycleID       string          `json:"cycleId"`
	Members       int             `json:"members"`
	Settled       int             `json:"settled"`
	TotalMatched  decimal.Decimal `json:"totalMatched"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	TotalDropped  decimal.Decimal `json:"totalDropped"`
	FailedMembers int             `json:"failedMembers"`
}

type service struct {
	db       TxRunner
	repo     Repository
	network  Networker
	wallets  Walleter
	ranks    ranks.Service
	outbox   Emitter
	cfg      config.CommissionConfig
	metrics  *metrics.CommissionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the commission engine.
func NewService(
	db TxRunner,
	repo Repository,
	networkSvc Networker,
	walletSvc Walleter,
	ranksSvc ranks.Service,
	outboxSvc Emitter,
	cfg config.CommissionConfig,
	commissionMetrics *metrics.CommissionMetrics,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if networkSvc == nil {
		return nil, fmt.Errorf("network service required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if ranksSvc == nil {
		return nil, fmt.Errorf("ranks service required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		db:      db,
		repo:    repo,
		network: networkSvc,
		wallets: walletSvc,
		ranks:   ranksSvc,
		outbox:  outboxSvc,
		cfg:     cfg,
		metrics: commissionMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) AwardInvestment(ctx context.Context, tx *gorm.DB, event InvestmentEvent) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if event.MemberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !event.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInvalidAmount, "investment amount must be positive").
			WithDetails(map[string]any{"amount": event.Amount.String()})
	}

	if err := s.network.RecordVolume(ctx, tx, event.MemberID, event.Amount); err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	investor, err := repo.GetMember(ctx, event.MemberID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load investor")
	}

	// Walk the sponsor chain. Level 1 is the direct sponsor, who also
	// earns the DIRECT referral commission on top of any level income.
	current := investor
	for level := 1; level <= s.cfg.LevelDepth; level++ {
		if current.SponsorID == nil {
			break
		}
		ancestor, err := repo.GetMember(ctx, *current.SponsorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sponsor chain")
		}

		if level == 1 && ancestor.IsActive {
			direct := &models.CommissionEntry{
				MemberID:       ancestor.ID,
				SourceEventID:  event.EventID,
				Type:           enums.CommissionTypeDirect,
				Level:          0,
				SourceMemberID: &investor.ID,
				BaseAmount:     event.Amount,
				Rate:           s.cfg.DirectRate,
				Amount:         event.Amount.Mul(s.cfg.DirectRate).Round(2),
				Description:    fmt.Sprintf("Direct commission on investment by %s", investor.ReferralCode),
			}
			if err := s.award(ctx, tx, direct); err != nil {
				return err
			}
		}

		rule, err := s.ranks.LevelRule(ctx, level)
		if err != nil {
			return err
		}
		// An unqualified or unconfigured level pays nothing and the level
		// counter still advances; there is no compression.
		if rule == nil || !ancestor.IsActive || !ancestor.Rank.AtLeast(rule.RequiredRank) {
			current = ancestor
			continue
		}

		entry := &models.CommissionEntry{
			MemberID:       ancestor.ID,
			SourceEventID:  event.EventID,
			Type:           enums.CommissionTypeLevel,
			Level:          level,
			SourceMemberID: &investor.ID,
			BaseAmount:     event.Amount,
			Rate:           rule.Rate,
			Amount:         event.Amount.Mul(rule.Rate).Round(2),
			Description:    fmt.Sprintf("Level %d commission on investment by %s", level, investor.ReferralCode),
		}
		if err := s.award(ctx, tx, entry); err != nil {
			return err
		}
		current = ancestor
	}
	return nil
}

func (s *service) AwardAchievement(ctx context.Context, tx *gorm.DB, event AchievementEvent) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if event.MemberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !event.Rank.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown rank").
			WithDetails(map[string]any{"rank": string(event.Rank)})
	}
	if event.RuleID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "achievement rule id is required")
	}

	repo := s.repo.WithTx(tx)
	member, err := repo.GetMember(ctx, event.MemberID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}

	// Ranks only move up.
	if event.Rank.AtLeast(member.Rank) && event.Rank != member.Rank {
		if err := repo.UpdateMemberRank(ctx, member.ID, event.Rank); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member rank")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRankAchieved,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID,
			Data: map[string]any{
				"memberId": member.ID,
				"rank":     event.Rank,
			},
		}); err != nil {
			return err
		}
	}

	if !event.BonusAmount.IsPositive() {
		return nil
	}
	bonus := &models.CommissionEntry{
		MemberID: member.ID,
		// Keyed by the rule, not the event, so the same achievement can
		// never pay twice even across distinct event ids.
		SourceEventID: "rule:" + event.RuleID,
		Type:          enums.CommissionTypeBonus,
		Level:         0,
		BaseAmount:    event.BonusAmount,
		Rate:          decimal.NewFromInt(1),
		Amount:        event.BonusAmount.Round(2),
		Description:   fmt.Sprintf("Rank bonus for achieving %s", event.Rank),
	}
	return s.award(ctx, tx, bonus)
}

func (s *service) SettleBinary(ctx context.Context, memberID uuid.UUID, cycleID string) (*BinarySettlement, error) {
	if memberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if cycleID == "" {
		cycleID = uuid.NewString()
	}

	settlement := &BinarySettlement{
		MemberID:      memberID,
		MatchedVolume: decimal.Zero,
		Commission:    decimal.Zero,
		Dropped:       decimal.Zero,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		matched, err := s.network.MatchAndCarry(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if !matched.IsPositive() {
			return nil
		}
		settlement.MatchedVolume = matched

		gross := matched.Mul(s.cfg.BinaryRate).Round(2)
		repo := s.repo.WithTx(tx)
		paidToday, err := repo.SumBinarySince(ctx, memberID, startOfDayUTC(s.now()))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum binary commission")
		}
		remaining := s.cfg.DailyBinaryCap.Sub(paidToday)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		payable := decimal.Min(gross, remaining)
		settlement.Commission = payable
		settlement.Dropped = gross.Sub(payable)

		if payable.IsPositive() {
			entry := &models.CommissionEntry{
				MemberID:      memberID,
				SourceEventID: "cycle:" + cycleID,
				Type:          enums.CommissionTypeBinary,
				Level:         0,
				BaseAmount:    matched,
				Rate:          s.cfg.BinaryRate,
				Amount:        payable,
				Description:   "Binary matching commission",
			}
			if err := s.award(ctx, tx, entry); err != nil {
				return err
			}
		}
		if settlement.Dropped.IsPositive() {
			s.metrics.IncBinaryDropped()
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBinaryMatchSettled,
			AggregateType: enums.AggregateMember,
			AggregateID:   memberID,
			Data:          settlement,
		})
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (s *service) RunMatchingCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{
		CycleID:      uuid.NewString(),
		TotalMatched: decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalDropped: decimal.Zero,
	}
	ids, err := s.repo.ListActiveMemberIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	result.Members = len(ids)

	var failures error
	for _, id := range ids {
		settlement, err := s.SettleBinary(ctx, id, result.CycleID)
		if err != nil {
			result.FailedMembers++
			failures = multierr.Append(failures, fmt.Errorf("member %s: %w", id, err))
			if s.logg != nil {
				s.logg.Error(ctx, "matching cycle: member settlement failed", err)
			}
			continue
		}
		if settlement.MatchedVolume.IsPositive() {
			result.Settled++
		}
		result.TotalMatched = result.TotalMatched.Add(settlement.MatchedVolume)
		result.TotalPaid = result.TotalPaid.Add(settlement.Commission)
		result.TotalDropped = result.TotalDropped.Add(settlement.Dropped)
	}
	return result, failures
}

func (s *service) ListEntries(ctx context.Context, memberID uuid.UUID, params pagination.Params) ([]models.CommissionEntry, *pagination.Cursor, error) {
	if memberID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	entries, next, listErr := s.repo.ListByMember(ctx, listEntriesParams{
		MemberID: memberID,
		Limit:    params.Limit,
		Cursor:   cursor,
	})
	if listErr != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, listErr, "list commission entries")
	}
	return entries, next, nil
}

// award persists one entry and credits the member's commission bucket.
// Replays are detected by inspecting existing entries before inserting, so
// the surrounding transaction never trips the dedupe index on the replay
// path. A unique violation can still happen when two transactions race the
// same award; it aborts the transaction on Postgres, so it must propagate
// and let the caller retry rather than be swallowed mid-transaction.
func (s *service) award(ctx context.Context, tx *gorm.DB, entry *models.CommissionEntry) error {
	entry.ID = uuid.New()
	if !entry.Amount.IsPositive() {
		return nil
	}
	repo := s.repo.WithTx(tx)
	paid, err := repo.EntryExists(ctx, entry.MemberID, entry.SourceEventID, entry.Type, entry.Level)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check commission entry")
	}
	if paid {
		return nil
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if dbpkg.IsUniqueViolation(err, "uq_commission_dedupe") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "concurrent commission award")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission entry")
	}

	if _, err := s.wallets.EnsureWallet(ctx, tx, entry.MemberID); err != nil {
		return err
	}
	metadata, _ := json.Marshal(map[string]any{
		"commissionType": entry.Type,
		"sourceEventId":  entry.SourceEventID,
		"level":          entry.Level,
	})
	if _, err := s.wallets.Credit(ctx, tx, wallet.MovementInput{
		MemberID:    entry.MemberID,
		Bucket:      enums.WalletBucketCommission,
		Amount:      entry.Amount,
		Reference:   entry.ID.String(),
		Description: entry.Description,
		Metadata:    metadata,
	}); err != nil {
		return err
	}
	s.metrics.IncEntry(string(entry.Type))

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionCredited,
		AggregateType: enums.AggregateCommissionEntry,
		AggregateID:   entry.ID,
		Data: map[string]any{
			"memberId": entry.MemberID,
			"type":     entry.Type,
			"level":    entry.Level,
			"amount":   entry.Amount,
		},
	})
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package ranks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
)

// Repository reads rank state and the level-rate table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetMemberRank(ctx context.Context, memberID uuid.UUID) (enums.Rank, error)
	GetLevelRule(ctx context.Context, level int) (*models.LevelCommissionRule, error)
	ListLevelRules(ctx context.Context) ([]models.LevelCommissionRule, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ranks repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetMemberRank(ctx context.Context, memberID uuid.UUID) (enums.Rank, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).
		Select("rank").
		Where("id = ?", memberID).
		First(&member).Error; err != nil {
		return "", err
	}
	return member.Rank, nil
}

func (r *repositoryImpl) GetLevelRule(ctx context.Context, level int) (*models.LevelCommissionRule, error) {
	var rule models.LevelCommissionRule
	if err := r.db.WithContext(ctx).Where("level = ?", level).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repositoryImpl) ListLevelRules(ctx context.Context) ([]models.LevelCommissionRule, error) {
	var rules []models.LevelCommissionRule
	if err := r.db.WithContext(ctx).Order("level ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Service answers rank and level-rate lookups for commission computation.
type Service interface {
	RankOf(ctx context.Context, memberID uuid.UUID) (enums.Rank, error)
	// LevelRule returns nil when no rule is configured for the level;
	// missing configuration pays zero and is not an error.
	LevelRule(ctx context.Context, level int) (*models.LevelCommissionRule, error)
}

type service struct {
	repo Repository
}

// NewService wires a ranks service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ranks repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RankOf(ctx context.Context, memberID uuid.UUID) (enums.Rank, error) {
	if memberID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	rank, err := s.repo.GetMemberRank(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member rank")
	}
	return rank, nil
}

func (s *service) LevelRule(ctx context.Context, level int) (*models.LevelCommissionRule, error) {
	if level <= 0 {
		return nil, nil
	}
	rule, err := s.repo.GetLevelRule(ctx, level)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load level rule")
	}
	return rule, nil
}

package kyc

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

// Checker answers KYC status lookups. Verification itself happens in an
// external onboarding system; this backend only reads the resulting status.
type Checker interface {
	Status(ctx context.Context, memberID uuid.UUID) (enums.KycStatus, error)
}

type dbChecker struct {
	db *gorm.DB
}

// NewChecker returns a Checker backed by the members table.
func NewChecker(db *gorm.DB) (Checker, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	return &dbChecker{db: db}, nil
}

func (c *dbChecker) Status(ctx context.Context, memberID uuid.UUID) (enums.KycStatus, error) {
	if memberID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	var member models.Member
	if err := c.db.WithContext(ctx).
		Select("kyc_status").
		Where("id = ?", memberID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kyc status")
	}
	return member.KycStatus, nil
}

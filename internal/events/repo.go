package events

import (
	"context"

	"gorm.io/gorm"

	dbpkg "github.com/terravest/terravest-backend/pkg/db"
	"github.com/terravest/terravest-backend/pkg/db/models"
	"github.com/terravest/terravest-backend/pkg/enums"
)

// Repository records which stream events have been handled. The insert
// lives inside the same transaction as the event's side effects, so a
// crash between the two cannot lose or double-apply an event.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// MarkIfNew inserts the event id and reports whether it was unseen.
	// A duplicate insert means the event was already processed.
	MarkIfNew(ctx context.Context, eventID string, eventType enums.MemberEventType) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an events repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) MarkIfNew(ctx context.Context, eventID string, eventType enums.MemberEventType) (bool, error) {
	row := &models.ProcessedEvent{EventID: eventID, EventType: eventType}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") || dbpkg.IsUniqueViolation(err, "processed_events") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

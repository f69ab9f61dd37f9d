package models

import (
	"time"

	"github.com/terravest/terravest-backend/pkg/enums"
)

// ProcessedEvent marks an inbound stream event as handled. Insert conflicts
// on EventID are how redeliveries get detected.
type ProcessedEvent struct {
	EventID     string                `gorm:"column:event_id;type:text;primaryKey"`
	EventType   enums.MemberEventType `gorm:"column:event_type;type:text;not null"`
	ProcessedAt time.Time             `gorm:"column:processed_at;autoCreateTime"`
}

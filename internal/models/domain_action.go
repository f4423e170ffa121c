// internal/models/domain_action.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// DomainAction is a durable unit of deferred work.
type DomainAction struct {
	BaseModel
	ActionType        DomainActionType   `json:"action_type" gorm:"type:varchar(50);not null;index"`
	Payload           JSONB              `json:"payload" gorm:"type:jsonb"`
	MainTableID       *uuid.UUID         `json:"main_table_id" gorm:"type:uuid"`
	ScheduledAt       time.Time          `json:"scheduled_at" gorm:"not null;index"`
	ExpiresAt         time.Time          `json:"expires_at" gorm:"not null"`
	BlockedUntil      time.Time          `json:"blocked_until" gorm:"not null"`
	LastAttemptedAt   *time.Time         `json:"last_attempted_at"`
	AttemptCount      int                `json:"attempt_count" gorm:"not null;default:0"`
	MaxAttemptCount   int                `json:"max_attempt_count" gorm:"not null"`
	Status            DomainActionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	LastFailureReason string             `json:"last_failure_reason" gorm:"type:text"`
}

// IsRunnable reports whether the action may be claimed at now.
func (a *DomainAction) IsRunnable(now time.Time) bool {
	return a.Status == DomainActionStatusPending &&
		!a.ScheduledAt.After(now) &&
		!a.BlockedUntil.After(now) &&
		a.AttemptCount < a.MaxAttemptCount &&
		now.Before(a.ExpiresAt)
}

// IsExhausted reports whether a pending action used its last attempt
// without a recorded outcome and its claim has lapsed.
func (a *DomainAction) IsExhausted(now time.Time) bool {
	return a.Status == DomainActionStatusPending &&
		a.AttemptCount >= a.MaxAttemptCount &&
		!a.BlockedUntil.After(now)
}

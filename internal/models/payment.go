// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	BaseModel
	OrderID           uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	CreatedBy         uuid.UUID         `json:"created_by" gorm:"type:uuid;not null"`
	Status            PaymentStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentMethod     PaymentMethodName `json:"payment_method" gorm:"type:varchar(20);not null"`
	Provider          string            `json:"provider" gorm:"size:50;not null"`
	ExternalReference string            `json:"external_reference" gorm:"size:255;index"`
	AmountInCents     int64             `json:"amount_in_cents" gorm:"not null"`
	Currency          string            `json:"currency" gorm:"size:3;not null"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	ProviderData      JSONB             `json:"-" gorm:"type:jsonb"`
}

// RequestLapsed reports whether an Authorized payment waiting on the buyer
// has outlived its request window. Payments without a window never lapse.
func (p *Payment) RequestLapsed(now time.Time) bool {
	return p.Status == PaymentStatusAuthorized && p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// PaymentEvent is the audit trail of raw provider payloads for a payment.
type PaymentEvent struct {
	BaseModel
	PaymentID uuid.UUID `json:"payment_id" gorm:"type:uuid;not null;index"`
	EventType string    `json:"event_type" gorm:"size:50;not null"`
	Payload   JSONB     `json:"payload" gorm:"type:jsonb"`
}

// PaymentMethod stores a provider repeat-charge token for a user.
type PaymentMethod struct {
	BaseModel
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Name         string    `json:"name" gorm:"size:50;not null"`
	IsDefault    bool      `json:"is_default" gorm:"default:false"`
	Provider     string    `json:"-" gorm:"size:255;not null"`
	ProviderData JSONB     `json:"-" gorm:"type:jsonb"`
}

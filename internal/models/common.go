// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}

	return json.Unmarshal(bytes, j)
}

// ToJSONB converts any JSON-serializable value into a JSONB map.
func ToJSONB(v interface{}) (JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Enums
type OrderType string

const (
	OrderTypeCart     OrderType = "cart"
	OrderTypePurchase OrderType = "purchase"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

type TicketInstanceStatus string

const (
	TicketInstanceStatusAvailable TicketInstanceStatus = "available"
	TicketInstanceStatusReserved  TicketInstanceStatus = "reserved"
	TicketInstanceStatusPurchased TicketInstanceStatus = "purchased"
	TicketInstanceStatusRedeemed  TicketInstanceStatus = "redeemed"
)

type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusExpired    PaymentStatus = "expired"
)

// IsActive reports whether a payment still counts against its order.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusAuthorized || s == PaymentStatusCompleted
}

type PaymentMethodName string

const (
	PaymentMethodExternal PaymentMethodName = "external"
	PaymentMethodCard     PaymentMethodName = "card"
	PaymentMethodRedirect PaymentMethodName = "redirect"
)

type DomainActionType string

const (
	DomainActionTypePaymentProviderIPN DomainActionType = "PaymentProviderIPN"
)

type DomainActionStatus string

const (
	DomainActionStatusPending DomainActionStatus = "pending"
	DomainActionStatusSuccess DomainActionStatus = "success"
	DomainActionStatusErrored DomainActionStatus = "errored"
	DomainActionStatusExpired DomainActionStatus = "expired"
)

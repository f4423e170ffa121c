// internal/models/ticket.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	BaseModel
	Name       string     `json:"name" gorm:"size:255;not null"`
	EventStart time.Time  `json:"event_start" gorm:"not null"`
	RedeemDate *time.Time `json:"redeem_date"`
}

// RedeemableAt is when the redeem key may be shown. Defaults to one day
// before the event starts.
func (e *Event) RedeemableAt() time.Time {
	if e.RedeemDate != nil {
		return *e.RedeemDate
	}
	return e.EventStart.Add(-24 * time.Hour)
}

type TicketType struct {
	BaseModel
	EventID       uuid.UUID  `json:"event_id" gorm:"type:uuid;not null;index"`
	Name          string     `json:"name" gorm:"size:255;not null"`
	PriceInCents  int64      `json:"price_in_cents" gorm:"not null"`
	FeeScheduleID *uuid.UUID `json:"fee_schedule_id" gorm:"type:uuid"`
}

// Asset ties a ticket type to its token on the ledger.
type Asset struct {
	BaseModel
	TicketTypeID      uuid.UUID `json:"ticket_type_id" gorm:"type:uuid;not null;uniqueIndex"`
	BlockchainAssetID *string   `json:"blockchain_asset_id" gorm:"size:255"`
}

func (a *Asset) IsProvisioned() bool {
	return a.BlockchainAssetID != nil && *a.BlockchainAssetID != ""
}

type TicketInstance struct {
	BaseModel
	AssetID            uuid.UUID            `json:"asset_id" gorm:"type:uuid;not null;index"`
	TicketTypeID       uuid.UUID            `json:"ticket_type_id" gorm:"type:uuid;not null;index"`
	TokenID            int64                `json:"token_id" gorm:"not null"`
	WalletID           uuid.UUID            `json:"wallet_id" gorm:"type:uuid;not null;index"`
	HoldCode           *string              `json:"-" gorm:"size:100"`
	OrderItemID        *uuid.UUID           `json:"order_item_id,omitempty" gorm:"type:uuid;index"`
	ReservedUntil      *time.Time           `json:"reserved_until,omitempty"`
	RedeemKey          *string              `json:"-" gorm:"size:64"`
	TransferKey        *uuid.UUID           `json:"-" gorm:"type:uuid;index"`
	TransferExpiryDate *time.Time           `json:"transfer_expiry_date,omitempty"`
	Status             TicketInstanceStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index"`
}

// IsHeldFor reports whether a request presenting code may take this instance.
func (t *TicketInstance) IsHeldFor(code *string) bool {
	if t.HoldCode == nil {
		return code == nil
	}
	return code != nil && *code == *t.HoldCode
}

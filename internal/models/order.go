// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	BaseModel
	UserID    uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	OrderType OrderType   `json:"order_type" gorm:"type:varchar(20);not null;default:'cart'"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	PaidAt    *time.Time  `json:"paid_at"`

	// Relationships
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID          uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	TicketTypeID     uuid.UUID `json:"ticket_type_id" gorm:"type:uuid;not null;index"`
	Quantity         int64     `json:"quantity" gorm:"not null"`
	UnitPriceInCents int64     `json:"unit_price_in_cents" gorm:"not null"`
	FeeInCents       int64     `json:"fee_in_cents" gorm:"not null;default:0"`
	RedemptionCode   *string   `json:"redemption_code,omitempty" gorm:"size:100"`
}

// TotalInCents is quantity times the per-unit price plus fee.
func (i *OrderItem) TotalInCents() int64 {
	return i.Quantity * (i.UnitPriceInCents + i.FeeInCents)
}

// CalculateTotal sums every item. Items must be loaded.
func (o *Order) CalculateTotal() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].TotalInCents()
	}
	return total
}

func (o *Order) IsDraft() bool {
	return o.Status == OrderStatusDraft
}

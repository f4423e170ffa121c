// internal/models/transfer.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TransferAuthorization struct {
	BaseModel
	SenderUserID     uuid.UUID      `json:"sender_user_id" gorm:"type:uuid;not null;index"`
	SenderWalletID   uuid.UUID      `json:"sender_wallet_id" gorm:"type:uuid;not null"`
	TransferKey      uuid.UUID      `json:"transfer_key" gorm:"type:uuid;not null;uniqueIndex"`
	TicketIDs        pq.StringArray `json:"ticket_ids" gorm:"type:text[]"`
	NumTickets       int            `json:"num_tickets" gorm:"not null"`
	IssuedAt         time.Time      `json:"issued_at" gorm:"not null"`
	TTLSeconds       int64          `json:"ttl_seconds" gorm:"not null"`
	ConsumedAt       *time.Time     `json:"consumed_at"`
	ReceiverWalletID *uuid.UUID     `json:"receiver_wallet_id" gorm:"type:uuid"`
}

func (t *TransferAuthorization) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.TTLSeconds) * time.Second)
}

// IsExpired reports whether now is past issued_at + ttl.
func (t *TransferAuthorization) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt())
}

func (t *TransferAuthorization) IsConsumed() bool {
	return t.ConsumedAt != nil
}

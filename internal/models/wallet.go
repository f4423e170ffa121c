// internal/models/wallet.go
package models

import (
	"github.com/google/uuid"
)

type Wallet struct {
	BaseModel
	UserID         *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" gorm:"type:uuid;index"`
	Name           string     `json:"name" gorm:"size:255;not null"`
	SecretKey      string     `json:"-" gorm:"size:128;not null"`
	PublicKey      string     `json:"public_key" gorm:"size:128;not null"`
	DefaultFlag    bool       `json:"default_flag" gorm:"default:false"`
}

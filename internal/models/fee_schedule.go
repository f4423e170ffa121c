// internal/models/fee_schedule.go
package models

import (
	"github.com/google/uuid"
)

type FeeSchedule struct {
	BaseModel
	Name   string             `json:"name" gorm:"size:255;not null"`
	Ranges []FeeScheduleRange `json:"ranges,omitempty" gorm:"foreignKey:FeeScheduleID"`
}

type FeeScheduleRange struct {
	BaseModel
	FeeScheduleID   uuid.UUID `json:"fee_schedule_id" gorm:"type:uuid;not null;index"`
	MinPriceInCents int64     `json:"min_price_in_cents" gorm:"not null"`
	FeeInCents      int64     `json:"fee_in_cents" gorm:"not null"`
}

// FeeFor returns the fee of the highest range whose minimum does not
// exceed price. Prices below every range carry no fee.
func (s *FeeSchedule) FeeFor(priceInCents int64) int64 {
	if s == nil {
		return 0
	}
	var (
		fee   int64
		floor int64 = -1
	)
	for _, r := range s.Ranges {
		if r.MinPriceInCents <= priceInCents && r.MinPriceInCents > floor {
			floor = r.MinPriceInCents
			fee = r.FeeInCents
		}
	}
	return fee
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// AvailabilitySlot is an open window published by a companion. Date is the
// calendar day in the platform time zone; StartsAt/EndsAt are UTC instants.
type AvailabilitySlot struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CompanionID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_slot_companion_date" json:"companion_id"`
	Date         string          `gorm:"size:10;not null;index:idx_slot_companion_date" json:"date"`
	StartsAt     time.Time       `gorm:"not null" json:"start_time"`
	EndsAt       time.Time       `gorm:"not null" json:"end_time"`
	PricePerHour decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_per_hour"`
	Status       SlotStatus      `gorm:"size:20;not null;default:'available';index" json:"status"`
	Version      int64           `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
)

type Referral struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReferrerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReferredUserID uuid.UUID       `gorm:"type:uuid;not null;unique"`
	Status         string          `gorm:"size:20;not null;default:'pending'"`
	RewardAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

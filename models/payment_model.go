package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one gateway intent raised for a booking.
type Payment struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	BookingID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"booking_id"`
	Provider        string          `gorm:"size:50;not null" json:"provider"`
	ProviderOrderID *string         `gorm:"size:255;unique" json:"provider_order_id"`
	ProviderTxnID   *string         `gorm:"size:255;unique" json:"provider_txn_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status          PaymentStatus   `gorm:"size:20;not null" json:"status"`
	RefundStatus    *string         `gorm:"size:20" json:"refund_status"`
	RefundAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

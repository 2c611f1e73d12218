package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutApproved   PayoutStatus = "approved"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutRejected   PayoutStatus = "rejected"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutApproved, PayoutRejected},
	PayoutApproved:   {PayoutProcessing, PayoutCompleted, PayoutRejected},
	PayoutProcessing: {PayoutCompleted, PayoutRejected},
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutApproved, PayoutProcessing, PayoutCompleted, PayoutRejected:
		return true
	}
	return false
}

type PayoutMethod string

const (
	PayoutMethodBank   PayoutMethod = "bank_transfer"
	PayoutMethodUPI    PayoutMethod = "upi"
	PayoutMethodMpesa  PayoutMethod = "mpesa"
	PayoutMethodPayPal PayoutMethod = "paypal"
)

type Payout struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CompanionID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"companion_id"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"requested_amount"`
	PlatformFee     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"platform_fee"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod   PayoutMethod    `gorm:"size:30;not null" json:"payment_method"`
	PaymentDetails  string          `gorm:"type:text;not null" json:"payment_details"`
	Status          PayoutStatus    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	RejectionReason *string         `gorm:"type:text" json:"rejection_reason,omitempty"`

	TransferReference *string    `gorm:"size:255" json:"transfer_reference,omitempty"`
	ReceiptURL        *string    `gorm:"size:512" json:"receipt_url,omitempty"`
	ProcessedBy       *uuid.UUID `gorm:"type:uuid" json:"processed_by,omitempty"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

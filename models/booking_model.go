package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingPending        BookingStatus = "pending"
	BookingAccepted       BookingStatus = "accepted"
	BookingCompleted      BookingStatus = "completed"
	BookingCancelled      BookingStatus = "cancelled"
	BookingExpired        BookingStatus = "expired"
	BookingDisputed       BookingStatus = "disputed"
	BookingFailed         BookingStatus = "failed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingPayment: {BookingPending, BookingExpired, BookingFailed, BookingCancelled},
	BookingPending:        {BookingAccepted, BookingCancelled},
	BookingAccepted:       {BookingCompleted, BookingCancelled, BookingDisputed},
	BookingDisputed:       {BookingCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPendingPayment, BookingPending, BookingAccepted, BookingCompleted,
		BookingCancelled, BookingExpired, BookingDisputed, BookingFailed:
		return true
	}
	return false
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "pending"
	EscrowHeld     EscrowStatus = "held"
	EscrowDisputed EscrowStatus = "disputed"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowPending:  {EscrowHeld},
	EscrowHeld:     {EscrowReleased, EscrowRefunded, EscrowDisputed},
	EscrowDisputed: {EscrowReleased, EscrowRefunded},
}

func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, allowed := range escrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	AvailabilityID uuid.UUID `gorm:"type:uuid;not null;index" json:"availability_id"`
	CompanionID    uuid.UUID `gorm:"type:uuid;not null;index" json:"companion_id"`
	SeekerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"seeker_id"`

	Date          string          `gorm:"size:10;not null" json:"date"`
	StartsAt      time.Time       `gorm:"not null" json:"start_time"`
	EndsAt        time.Time       `gorm:"not null" json:"end_time"`
	DurationHours decimal.Decimal `gorm:"type:numeric(6,2);not null" json:"duration_hours"`

	BasePrice       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_price"`
	PlatformFee     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_fee"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	CompanionPayout decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"companion_payout"`
	RefundAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`

	Status       BookingStatus `gorm:"size:20;not null;default:'pending_payment';index" json:"status"`
	EscrowStatus EscrowStatus  `gorm:"size:20;not null;default:'pending';index" json:"escrow_status"`

	PaymentOrderID   *string   `gorm:"size:255;unique" json:"payment_order_id"`
	PaymentReference *string   `gorm:"size:255" json:"payment_reference,omitempty"`
	RequestExpiresAt time.Time `gorm:"not null;index" json:"request_expires_at"`

	CancelledBy        *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CancellationReason *string    `gorm:"type:text" json:"cancellation_reason,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// EffectiveStatus reports a lapsed pending_payment booking as expired even
// when the stored row has not been updated yet.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingPendingPayment && !now.Before(b.RequestExpiresAt) {
		return BookingExpired
	}
	return b.Status
}

// Live reports whether the booking still claims its window on the slot.
func (b *Booking) Live(now time.Time) bool {
	switch b.EffectiveStatus(now) {
	case BookingPendingPayment, BookingPending, BookingAccepted, BookingDisputed, BookingCompleted:
		return true
	}
	return false
}

func (b *Booking) IsParty(userID uuid.UUID) bool {
	return b.SeekerID == userID || b.CompanionID == userID
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeClosed      DisputeStatus = "closed"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeOpen:        {DisputeUnderReview, DisputeResolved, DisputeClosed},
	DisputeUnderReview: {DisputeResolved, DisputeClosed},
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	for _, allowed := range disputeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s DisputeStatus) Active() bool {
	return s == DisputeOpen || s == DisputeUnderReview
}

type DisputeOutcome string

const (
	OutcomeReleaseToCompanion DisputeOutcome = "release_to_companion"
	OutcomePartialRefund      DisputeOutcome = "partial_refund"
	OutcomeFullRefund         DisputeOutcome = "full_refund"
)

type Dispute struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	BookingID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"booking_id"`
	RaisedBy      uuid.UUID       `gorm:"type:uuid;not null;index" json:"raised_by"`
	AgainstUserID uuid.UUID       `gorm:"type:uuid;not null;index" json:"against_user_id"`
	Reason        string          `gorm:"type:text;not null" json:"reason"`
	Status        DisputeStatus   `gorm:"size:20;not null;default:'open';index" json:"status"`
	HoldsEscrow   bool            `gorm:"not null;default:false" json:"holds_escrow"`
	Outcome       *DisputeOutcome `gorm:"size:30" json:"outcome,omitempty"`
	Resolution    *string         `gorm:"type:text" json:"resolution,omitempty"`
	RefundAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`
	EvidenceURLs  *string         `gorm:"type:text" json:"evidence_urls,omitempty"`
	ResolvedBy    *uuid.UUID      `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`

	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

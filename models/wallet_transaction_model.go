package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionReferral      TransactionType = "referral"
	TransactionCampaignBonus TransactionType = "campaign_bonus"
	TransactionRefund        TransactionType = "refund"
)

// WalletTransaction is an append-only ledger entry. Rows are never updated.
type WalletTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	TransactionType TransactionType `gorm:"size:30;not null;index" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceBefore   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_before"`
	BalanceAfter    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`
	ReferenceID     *uuid.UUID      `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	ReferenceType   string          `gorm:"size:30" json:"reference_type"`
	Description     string          `gorm:"size:255" json:"description"`
	Status          string          `gorm:"size:20;not null;default:'completed'" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *WalletTransaction) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}

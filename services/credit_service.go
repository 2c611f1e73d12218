package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreditService struct {
	db      *gorm.DB
	emitter notifications.Emitter
	opts    Options
}

func NewCreditService(db *gorm.DB, emitter notifications.Emitter, opts Options) *CreditService {
	if emitter == nil {
		emitter = notifications.Nop{}
	}
	return &CreditService{db: db, emitter: emitter, opts: opts}
}

// credit appends a wallet transaction under the user's wallet lock, stamping
// the ledger balance before and after.
func credit(tx *gorm.DB, userID uuid.UUID, kind models.TransactionType, amount decimal.Decimal, refID *uuid.UUID, refType, description string) (*models.WalletTransaction, error) {
	if err := lockWallet(tx, userID); err != nil {
		return nil, err
	}
	snap, err := ledgerSnapshot(tx, userID)
	if err != nil {
		return nil, err
	}

	entry := models.WalletTransaction{
		UserID:          userID,
		TransactionType: kind,
		Amount:          amount.Round(2),
		BalanceBefore:   snap.Available,
		BalanceAfter:    snap.Available.Add(amount).Round(2),
		ReferenceID:     refID,
		ReferenceType:   refType,
		Description:     description,
		Status:          "completed",
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// completeReferral rewards the referrer the first time a referred user pays
// for a booking. It is a no-op when there is no pending referral.
func completeReferral(tx *gorm.DB, referredUserID uuid.UUID, reward decimal.Decimal) (*models.WalletTransaction, error) {
	var referral models.Referral
	err := tx.Where("referred_user_id = ? AND status = ?", referredUserID, models.ReferralPending).First(&referral).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.Referral{}).
		Where("id = ? AND status = ?", referral.ID, models.ReferralPending).
		Updates(map[string]interface{}{"status": models.ReferralCompleted, "reward_amount": reward})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	return credit(tx, referral.ReferrerID, models.TransactionReferral, reward, &referral.ID, "referral", "Referral reward")
}

// GrantCampaignBonus credits a promotional amount to a user's wallet.
func (s *CreditService) GrantCampaignBonus(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, campaign string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("bonus amount must be positive: %w", ErrInvalidInput)
	}
	if campaign == "" {
		return nil, fmt.Errorf("campaign: %w", ErrReasonRequired)
	}

	var entry *models.WalletTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").First(&user, "id = ?", userID).Error; err != nil {
			return notFound(err, "user")
		}
		var err error
		entry, err = credit(tx, userID, models.TransactionCampaignBonus, amount, nil, "campaign", campaign)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Enqueue(ctx, userID, notifications.KindWalletCredited, map[string]interface{}{
		"transaction_id": entry.ID,
		"amount":         entry.Amount.StringFixed(2),
		"type":           entry.TransactionType,
	})
	return entry, nil
}

// RegisterReferral links a new user to the owner of code.
func (s *CreditService) RegisterReferral(tx *gorm.DB, newUserID uuid.UUID, code string) error {
	var referrer models.User
	if err := tx.Select("id").Where("referral_code = ?", code).First(&referrer).Error; err != nil {
		return notFound(err, "referral code")
	}
	if referrer.ID == newUserID {
		return fmt.Errorf("self referral: %w", ErrInvalidInput)
	}
	return tx.Create(&models.Referral{
		ReferrerID:     referrer.ID,
		ReferredUserID: newUserID,
		Status:         models.ReferralPending,
	}).Error
}

func (s *CreditService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

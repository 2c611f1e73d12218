package services

import (
	"context"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerSnapshot is the set of aggregates a balance is derived from. All of
// them come from one statement, so they describe the same instant.
type LedgerSnapshot struct {
	ReleasedEarnings decimal.Decimal `json:"released_earnings"`
	ReleasedBookings int64           `json:"released_bookings"`
	Credits          decimal.Decimal `json:"credits"`
	Withdrawn        decimal.Decimal `json:"withdrawn"`
	Reserved         decimal.Decimal `json:"reserved"`
	Available        decimal.Decimal `json:"available_balance"`
}

const ledgerQuery = `
SELECT
	(SELECT COALESCE(SUM(companion_payout), 0) FROM bookings
		WHERE companion_id = @user AND escrow_status = @released) AS released_earnings,
	(SELECT COUNT(*) FROM bookings
		WHERE companion_id = @user AND escrow_status = @released) AS released_bookings,
	(SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE user_id = @user AND transaction_type IN @credit_types) AS credits,
	(SELECT COALESCE(SUM(requested_amount), 0) FROM payouts
		WHERE companion_id = @user AND status = @completed) AS withdrawn,
	(SELECT COALESCE(SUM(requested_amount), 0) FROM payouts
		WHERE companion_id = @user AND status IN @reserving) AS reserved`

// ledgerSnapshot recomputes the balance from settled facts. It never reads a
// stored balance; none exists.
func ledgerSnapshot(tx *gorm.DB, userID uuid.UUID) (LedgerSnapshot, error) {
	var snap LedgerSnapshot
	err := tx.Raw(ledgerQuery, map[string]interface{}{
		"user":         userID,
		"released":     models.EscrowReleased,
		"credit_types": []models.TransactionType{models.TransactionReferral, models.TransactionCampaignBonus},
		"completed":    models.PayoutCompleted,
		"reserving":    []models.PayoutStatus{models.PayoutPending, models.PayoutApproved, models.PayoutProcessing},
	}).Scan(&snap).Error
	if err != nil {
		return LedgerSnapshot{}, err
	}

	snap.ReleasedEarnings = snap.ReleasedEarnings.Round(2)
	snap.Credits = snap.Credits.Round(2)
	snap.Withdrawn = snap.Withdrawn.Round(2)
	snap.Reserved = snap.Reserved.Round(2)

	available := snap.ReleasedEarnings.Add(snap.Credits).Sub(snap.Withdrawn).Sub(snap.Reserved)
	if available.IsNegative() {
		available = decimal.Zero
	}
	snap.Available = available.Round(2)
	return snap, nil
}

type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

func (s *LedgerService) Snapshot(ctx context.Context, userID uuid.UUID) (LedgerSnapshot, error) {
	return ledgerSnapshot(s.db.WithContext(ctx), userID)
}

func (s *LedgerService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Available, nil
}

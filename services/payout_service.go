package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const payoutScope = "payout"

// SubmissionGuard rejects a request while an identical one is in flight.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ReceiptGenerator renders and stores a receipt, returning its URL.
type ReceiptGenerator interface {
	PayoutReceipt(ctx context.Context, payout models.Payout, companion models.User) (string, error)
}

type PayoutService struct {
	db       *gorm.DB
	emitter  notifications.Emitter
	guard    SubmissionGuard
	receipts ReceiptGenerator
	opts     Options
}

func NewPayoutService(db *gorm.DB, emitter notifications.Emitter, guard SubmissionGuard, receipts ReceiptGenerator, opts Options) *PayoutService {
	if emitter == nil {
		emitter = notifications.Nop{}
	}
	return &PayoutService{db: db, emitter: emitter, guard: guard, receipts: receipts, opts: opts}
}

type PayoutRequest struct {
	CompanionID    uuid.UUID
	Amount         decimal.Decimal
	Method         models.PayoutMethod
	Details        string
	IdempotencyKey string
}

func (r PayoutRequest) hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		r.CompanionID.String(), r.Amount.StringFixed(2), string(r.Method), r.Details,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

func validMethod(m models.PayoutMethod) bool {
	switch m {
	case models.PayoutMethodBank, models.PayoutMethodUPI, models.PayoutMethodMpesa, models.PayoutMethodPayPal:
		return true
	}
	return false
}

// Request reserves part of the companion's available balance for withdrawal.
// A retried request (same idempotency key, or the same method and amount
// inside the duplicate window) returns the original payout with
// replayed=true.
func (s *PayoutService) Request(ctx context.Context, in PayoutRequest) (*models.Payout, bool, error) {
	if !validMethod(in.Method) {
		return nil, false, fmt.Errorf("payment_method %q: %w", in.Method, ErrInvalidInput)
	}
	if strings.TrimSpace(in.Details) == "" {
		return nil, false, fmt.Errorf("payment_details: %w", ErrInvalidInput)
	}
	in.Amount = in.Amount.Round(2)
	if in.Amount.LessThan(s.opts.MinPayoutAmount) {
		return nil, false, fmt.Errorf("minimum is %s: %w", s.opts.MinPayoutAmount.StringFixed(2), ErrBelowMinimum)
	}

	hash := in.hash()
	if in.IdempotencyKey != "" {
		payout, err := s.replay(s.db.WithContext(ctx), in, hash)
		if err != nil || payout != nil {
			return payout, payout != nil, err
		}
	}

	if s.guard != nil {
		key := in.CompanionID.String() + ":" + hash
		acquired, err := s.guard.Acquire(ctx, key, s.opts.PayoutDuplicateWindow)
		switch {
		case err != nil:
			logger.Log.Warn("submission guard unavailable, relying on database checks", "error", err)
		case !acquired:
			return nil, false, ErrDuplicateSubmission
		default:
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
					logger.Log.Warn("release submission guard", "error", err)
				}
			}()
		}
	}

	var (
		payout   models.Payout
		replayed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWallet(tx, in.CompanionID); err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			existing, err := s.replay(tx, in, hash)
			if err != nil {
				return err
			}
			if existing != nil {
				payout, replayed = *existing, true
				return nil
			}
		}

		now := s.opts.now()
		var pending []models.Payout
		if err := tx.Where("companion_id = ? AND status = ? AND payment_method = ?",
			in.CompanionID, models.PayoutPending, in.Method).Find(&pending).Error; err != nil {
			return err
		}
		for _, p := range pending {
			if p.RequestedAmount.Equal(in.Amount) && now.Sub(p.CreatedAt) < s.opts.PayoutDuplicateWindow {
				payout, replayed = p, true
				return nil
			}
		}

		snap, err := ledgerSnapshot(tx, in.CompanionID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(snap.Available) {
			return fmt.Errorf("available %s: %w", snap.Available.StringFixed(2), ErrInsufficientBalance)
		}
		if snap.ReleasedBookings == 0 {
			return ErrBonusOnlyWithdrawal
		}

		fee := percentOf(in.Amount, s.opts.PayoutFeePercent)
		payout = models.Payout{
			CompanionID:     in.CompanionID,
			RequestedAmount: in.Amount,
			PlatformFee:     fee,
			Amount:          in.Amount.Sub(fee),
			PaymentMethod:   in.Method,
			PaymentDetails:  in.Details,
			Status:          models.PayoutPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(&payout).Error; err != nil {
			return err
		}

		if in.IdempotencyKey != "" {
			return tx.Create(&models.IdempotencyRecord{
				Scope:       payoutScope,
				Key:         in.IdempotencyKey,
				OwnerID:     in.CompanionID,
				RequestHash: hash,
				ResourceID:  payout.ID,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !replayed {
		s.emitter.Enqueue(ctx, in.CompanionID, notifications.KindPayoutRequested, map[string]interface{}{
			"payout_id": payout.ID, "amount": payout.RequestedAmount.StringFixed(2),
		})
	}
	return &payout, replayed, nil
}

func (s *PayoutService) replay(tx *gorm.DB, in PayoutRequest, hash string) (*models.Payout, error) {
	var record models.IdempotencyRecord
	err := tx.Where("scope = ? AND idempotency_key = ?", payoutScope, in.IdempotencyKey).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.OwnerID != in.CompanionID || record.RequestHash != hash {
		return nil, ErrIdempotencyConflict
	}

	var payout models.Payout
	if err := tx.First(&payout, "id = ?", record.ResourceID).Error; err != nil {
		return nil, notFound(err, "payout")
	}
	return &payout, nil
}

// transition applies an admin decision to a payout under a version check.
func (s *PayoutService) transition(ctx context.Context, adminID, payoutID uuid.UUID, to models.PayoutStatus, extra map[string]interface{}, within func(tx *gorm.DB, p *models.Payout) error) (*models.Payout, error) {
	var payout models.Payout
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&payout, "id = ?", payoutID).Error; err != nil {
			return notFound(err, "payout")
		}
		if !payout.Status.CanTransitionTo(to) {
			return transitionError("payout", payout.Status, to)
		}

		now := s.opts.now()
		updates := map[string]interface{}{
			"status":       to,
			"processed_by": adminID,
			"processed_at": now,
		}
		for k, v := range extra {
			updates[k] = v
		}
		if within == nil {
			if err := casUpdate(tx, &models.Payout{}, payout.ID, payout.Version, updates); err != nil {
				return err
			}
		} else {
			if err := lockWallet(tx, payout.CompanionID); err != nil {
				return err
			}
			if err := casUpdate(tx, &models.Payout{}, payout.ID, payout.Version, updates); err != nil {
				return err
			}
			if err := within(tx, &payout); err != nil {
				return err
			}
		}
		return tx.First(&payout, "id = ?", payout.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (s *PayoutService) Approve(ctx context.Context, adminID, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.transition(ctx, adminID, payoutID, models.PayoutApproved, nil, nil)
	if err != nil {
		return nil, err
	}
	s.emitter.Enqueue(ctx, payout.CompanionID, notifications.KindPayoutApproved, map[string]interface{}{"payout_id": payout.ID})
	return payout, nil
}

func (s *PayoutService) MarkProcessing(ctx context.Context, adminID, payoutID uuid.UUID, transferRef string) (*models.Payout, error) {
	extra := map[string]interface{}{}
	if transferRef != "" {
		extra["transfer_reference"] = transferRef
	}
	return s.transition(ctx, adminID, payoutID, models.PayoutProcessing, extra, nil)
}

// Reject returns the reserved amount to the companion's balance and records
// the reversal as a refund entry.
func (s *PayoutService) Reject(ctx context.Context, adminID, payoutID uuid.UUID, reason string) (*models.Payout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var before decimal.Decimal
	payout, err := s.transition(ctx, adminID, payoutID, models.PayoutRejected,
		map[string]interface{}{"rejection_reason": reason},
		func(tx *gorm.DB, p *models.Payout) error {
			// the status update above already ran; recompute what the
			// balance was with the payout still reserving
			after, err := ledgerSnapshot(tx, p.CompanionID)
			if err != nil {
				return err
			}
			before = after.Available.Sub(p.RequestedAmount)
			if before.IsNegative() {
				before = decimal.Zero
			}
			return tx.Create(&models.WalletTransaction{
				UserID:          p.CompanionID,
				TransactionType: models.TransactionRefund,
				Amount:          p.RequestedAmount,
				BalanceBefore:   before,
				BalanceAfter:    after.Available,
				ReferenceID:     &p.ID,
				ReferenceType:   "payout",
				Description:     "Payout rejected: " + reason,
				Status:          "completed",
			}).Error
		})
	if err != nil {
		return nil, err
	}

	s.emitter.Enqueue(ctx, payout.CompanionID, notifications.KindPayoutRejected, map[string]interface{}{
		"payout_id": payout.ID, "reason": reason,
	})
	return payout, nil
}

// Complete marks the transfer done. The receipt is rendered afterwards and
// its failure does not affect the payout.
func (s *PayoutService) Complete(ctx context.Context, adminID, payoutID uuid.UUID, transferRef string) (*models.Payout, error) {
	extra := map[string]interface{}{}
	if transferRef != "" {
		extra["transfer_reference"] = transferRef
	}
	payout, err := s.transition(ctx, adminID, payoutID, models.PayoutCompleted, extra, nil)
	if err != nil {
		return nil, err
	}

	s.emitter.Enqueue(ctx, payout.CompanionID, notifications.KindPayoutCompleted, map[string]interface{}{
		"payout_id": payout.ID, "amount": payout.Amount.StringFixed(2),
	})
	if s.receipts != nil {
		go s.attachReceipt(*payout)
	}
	return payout, nil
}

func (s *PayoutService) attachReceipt(payout models.Payout) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var companion models.User
	if err := s.db.WithContext(ctx).First(&companion, "id = ?", payout.CompanionID).Error; err != nil {
		logger.Log.Error("🔥 receipt: load companion", "payout_id", payout.ID, "error", err)
		return
	}
	url, err := s.receipts.PayoutReceipt(ctx, payout, companion)
	if err != nil {
		logger.Log.Error("🔥 receipt generation failed", "payout_id", payout.ID, "error", err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.Payout{}).Where("id = ?", payout.ID).
		Update("receipt_url", url).Error; err != nil {
		logger.Log.Error("🔥 receipt: save url", "payout_id", payout.ID, "error", err)
		return
	}
	logger.Log.Info("✅ payout receipt stored", "payout_id", payout.ID)
}

type PayoutFilter struct {
	CompanionID *uuid.UUID
	Status      models.PayoutStatus
}

func (s *PayoutService) List(ctx context.Context, filter PayoutFilter) ([]models.Payout, error) {
	q := s.db.WithContext(ctx).Model(&models.Payout{})
	if filter.CompanionID != nil {
		q = q.Where("companion_id = ?", *filter.CompanionID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var payouts []models.Payout
	err := q.Order("created_at desc").Find(&payouts).Error
	return payouts, err
}

func (s *PayoutService) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := s.db.WithContext(ctx).First(&payout, "id = ?", payoutID).Error; err != nil {
		return nil, notFound(err, "payout")
	}
	return &payout, nil
}

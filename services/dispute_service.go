package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DisputeService struct {
	db      *gorm.DB
	emitter notifications.Emitter
	opts    Options
}

func NewDisputeService(db *gorm.DB, emitter notifications.Emitter, opts Options) *DisputeService {
	if emitter == nil {
		emitter = notifications.Nop{}
	}
	return &DisputeService{db: db, emitter: emitter, opts: opts}
}

type RaiseDisputeInput struct {
	BookingID    uuid.UUID
	RaisedBy     uuid.UUID
	Reason       string
	EvidenceURLs []string
}

// Raise opens a dispute on a booking. On an accepted booking the escrow is
// frozen until an administrator resolves it; on a settled booking the
// dispute is recorded without moving money.
func (s *DisputeService) Raise(ctx context.Context, in RaiseDisputeInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var dispute models.Dispute
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.First(&booking, "id = ?", in.BookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if !booking.IsParty(in.RaisedBy) {
			return ErrForbidden
		}

		var active int64
		if err := tx.Model(&models.Dispute{}).
			Where("booking_id = ? AND status IN ?", booking.ID, []models.DisputeStatus{models.DisputeOpen, models.DisputeUnderReview}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("booking already has an active dispute: %w", ErrConflict)
		}

		holdsEscrow := false
		switch status := booking.EffectiveStatus(s.opts.now()); status {
		case models.BookingAccepted:
			if !booking.EscrowStatus.CanTransitionTo(models.EscrowDisputed) {
				return transitionError("escrow", booking.EscrowStatus, models.EscrowDisputed)
			}
			if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, map[string]interface{}{
				"status":        models.BookingDisputed,
				"escrow_status": models.EscrowDisputed,
			}); err != nil {
				return err
			}
			holdsEscrow = true
		case models.BookingCompleted, models.BookingCancelled:
		default:
			return transitionError("booking", status, models.BookingDisputed)
		}

		against := booking.CompanionID
		if in.RaisedBy == booking.CompanionID {
			against = booking.SeekerID
		}
		dispute = models.Dispute{
			BookingID:     booking.ID,
			RaisedBy:      in.RaisedBy,
			AgainstUserID: against,
			Reason:        reason,
			Status:        models.DisputeOpen,
			HoldsEscrow:   holdsEscrow,
			RefundAmount:  decimal.Zero,
		}
		if len(in.EvidenceURLs) > 0 {
			urls := strings.Join(in.EvidenceURLs, "\n")
			dispute.EvidenceURLs = &urls
		}
		return tx.Create(&dispute).Error
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Enqueue(ctx, dispute.AgainstUserID, notifications.KindDisputeRaised, map[string]interface{}{
		"dispute_id": dispute.ID, "booking_id": dispute.BookingID,
	})
	return &dispute, nil
}

func (s *DisputeService) Review(ctx context.Context, adminID, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&dispute, "id = ?", disputeID).Error; err != nil {
			return notFound(err, "dispute")
		}
		if !dispute.Status.CanTransitionTo(models.DisputeUnderReview) {
			return transitionError("dispute", dispute.Status, models.DisputeUnderReview)
		}
		if err := casUpdate(tx, &models.Dispute{}, dispute.ID, dispute.Version, map[string]interface{}{
			"status": models.DisputeUnderReview,
		}); err != nil {
			return err
		}
		return tx.First(&dispute, "id = ?", dispute.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

type ResolveDisputeInput struct {
	DisputeID    uuid.UUID
	AdminID      uuid.UUID
	Outcome      models.DisputeOutcome
	RefundAmount decimal.Decimal
	Notes        string
}

// outcomeFor checks that an outcome agrees with the refund, deriving it when
// none was given.
func outcomeFor(outcome models.DisputeOutcome, refund, total decimal.Decimal) (models.DisputeOutcome, error) {
	derived := models.OutcomePartialRefund
	switch {
	case refund.IsZero():
		derived = models.OutcomeReleaseToCompanion
	case refund.Equal(total):
		derived = models.OutcomeFullRefund
	}
	if outcome == "" || outcome == derived {
		return derived, nil
	}
	return "", fmt.Errorf("outcome %s does not match refund %s of %s: %w",
		outcome, refund.StringFixed(2), total.StringFixed(2), ErrInvalidInput)
}

// Resolve settles an escrow-holding dispute. Zero refund releases the escrow
// to the companion; any refund moves it to refunded.
func (s *DisputeService) Resolve(ctx context.Context, in ResolveDisputeInput) (*models.Dispute, error) {
	refund := in.RefundAmount.Round(2)
	if refund.IsNegative() {
		return nil, fmt.Errorf("refund_amount: %w", ErrInvalidInput)
	}

	var (
		dispute models.Dispute
		booking models.Booking
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&dispute, "id = ?", in.DisputeID).Error; err != nil {
			return notFound(err, "dispute")
		}
		if !dispute.Status.CanTransitionTo(models.DisputeResolved) {
			return transitionError("dispute", dispute.Status, models.DisputeResolved)
		}
		if err := tx.First(&booking, "id = ?", dispute.BookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if refund.GreaterThan(booking.TotalAmount) {
			return fmt.Errorf("refund %s exceeds total %s: %w",
				refund.StringFixed(2), booking.TotalAmount.StringFixed(2), ErrRefundExceedsTotal)
		}
		if !dispute.HoldsEscrow || booking.Status != models.BookingDisputed {
			return &TransitionError{
				Entity: "booking", From: string(booking.Status), To: string(models.BookingCompleted),
				Detail: "booking never disputed",
			}
		}

		outcome, err := outcomeFor(in.Outcome, refund, booking.TotalAmount)
		if err != nil {
			return err
		}
		escrow := models.EscrowReleased
		if refund.IsPositive() {
			escrow = models.EscrowRefunded
		}
		if !booking.EscrowStatus.CanTransitionTo(escrow) {
			return transitionError("escrow", booking.EscrowStatus, escrow)
		}

		if err := lockWallet(tx, booking.CompanionID); err != nil {
			return err
		}
		now := s.opts.now()
		if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, map[string]interface{}{
			"status":        models.BookingCompleted,
			"escrow_status": escrow,
			"refund_amount": refund,
			"completed_at":  now,
		}); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":        models.DisputeResolved,
			"outcome":       outcome,
			"refund_amount": refund,
			"resolved_by":   in.AdminID,
			"resolved_at":   now,
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			updates["resolution"] = notes
		}
		if err := casUpdate(tx, &models.Dispute{}, dispute.ID, dispute.Version, updates); err != nil {
			return err
		}
		if refund.IsPositive() {
			if err := markRefund(tx, booking.ID, refund); err != nil {
				return err
			}
		}
		if err := tx.First(&booking, "id = ?", booking.ID).Error; err != nil {
			return err
		}
		return tx.First(&dispute, "id = ?", dispute.ID).Error
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"dispute_id": dispute.ID, "booking_id": booking.ID, "refund_amount": refund.StringFixed(2),
	}
	s.emitter.Enqueue(ctx, booking.SeekerID, notifications.KindDisputeResolved, payload)
	s.emitter.Enqueue(ctx, booking.CompanionID, notifications.KindDisputeResolved, payload)
	if refund.IsPositive() {
		s.emitter.Enqueue(ctx, booking.SeekerID, notifications.KindRefundInitiated, map[string]interface{}{
			"booking_id": booking.ID, "amount": refund.StringFixed(2),
		})
	}
	return &dispute, nil
}

// Close ends a dispute that froze no escrow.
func (s *DisputeService) Close(ctx context.Context, adminID, disputeID uuid.UUID, notes string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&dispute, "id = ?", disputeID).Error; err != nil {
			return notFound(err, "dispute")
		}
		if !dispute.Status.CanTransitionTo(models.DisputeClosed) {
			return transitionError("dispute", dispute.Status, models.DisputeClosed)
		}
		if dispute.HoldsEscrow {
			return &TransitionError{
				Entity: "dispute", From: string(dispute.Status), To: string(models.DisputeClosed),
				Detail: "escrow is frozen, resolve the dispute instead",
			}
		}
		updates := map[string]interface{}{
			"status":      models.DisputeClosed,
			"resolved_by": adminID,
			"resolved_at": s.opts.now(),
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			updates["resolution"] = notes
		}
		if err := casUpdate(tx, &models.Dispute{}, dispute.ID, dispute.Version, updates); err != nil {
			return err
		}
		return tx.First(&dispute, "id = ?", dispute.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (s *DisputeService) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.WithContext(ctx).First(&dispute, "id = ?", disputeID).Error; err != nil {
		return nil, notFound(err, "dispute")
	}
	return &dispute, nil
}

// AddEvidence appends evidence links to an active dispute. Either party may
// add evidence.
func (s *DisputeService) AddEvidence(ctx context.Context, userID, disputeID uuid.UUID, urls []string) (*models.Dispute, error) {
	var clean []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			clean = append(clean, u)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("evidence_urls: %w", ErrInvalidInput)
	}

	var dispute models.Dispute
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&dispute, "id = ?", disputeID).Error; err != nil {
			return notFound(err, "dispute")
		}
		if dispute.RaisedBy != userID && dispute.AgainstUserID != userID {
			return ErrForbidden
		}
		if !dispute.Status.Active() {
			return &TransitionError{
				Entity: "dispute", From: string(dispute.Status), To: string(dispute.Status),
				Detail: "evidence can only be added while the dispute is open",
			}
		}
		if dispute.EvidenceURLs != nil && *dispute.EvidenceURLs != "" {
			clean = append([]string{*dispute.EvidenceURLs}, clean...)
		}
		if err := casUpdate(tx, &models.Dispute{}, dispute.ID, dispute.Version, map[string]interface{}{
			"evidence_urls": strings.Join(clean, "\n"),
		}); err != nil {
			return err
		}
		return tx.First(&dispute, "id = ?", dispute.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (s *DisputeService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := s.db.WithContext(ctx).
		Where("raised_by = ? OR against_user_id = ?", userID, userID).
		Order("created_at desc").
		Find(&disputes).Error
	return disputes, err
}

func (s *DisputeService) ListByStatus(ctx context.Context, status models.DisputeStatus) ([]models.Dispute, error) {
	q := s.db.WithContext(ctx).Model(&models.Dispute{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var disputes []models.Dispute
	err := q.Order("created_at asc").Find(&disputes).Error
	return disputes, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/anjiri1684/companion_booking/payments"
	"github.com/anjiri1684/companion_booking/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingService struct {
	db       *gorm.DB
	gateway  payments.PaymentIntentGateway
	emitter  notifications.Emitter
	identity IdentityVerifier
	opts     Options
}

func NewBookingService(db *gorm.DB, gateway payments.PaymentIntentGateway, emitter notifications.Emitter, identity IdentityVerifier, opts Options) *BookingService {
	if emitter == nil {
		emitter = notifications.Nop{}
	}
	return &BookingService{db: db, gateway: gateway, emitter: emitter, identity: identity, opts: opts}
}

type CreateBookingInput struct {
	SeekerID      uuid.UUID
	SlotID        uuid.UUID
	StartsAt      time.Time
	DurationHours decimal.Decimal
	Provider      string
	PayerPhone    string
}

type CreateBookingResult struct {
	Booking *models.Booking  `json:"booking"`
	Intent  *payments.Intent `json:"payment_intent"`
}

type intent struct {
	user    uuid.UUID
	kind    notifications.Kind
	payload map[string]interface{}
}

func (s *BookingService) emit(ctx context.Context, intents []intent) {
	for _, in := range intents {
		s.emitter.Enqueue(ctx, in.user, in.kind, in.payload)
	}
}

// Pricing: base = price_per_hour x hours, fee = base x fee%, total = base + fee.
// The companion is owed the base.
func price(pricePerHour, hours, feePercent decimal.Decimal) (base, fee, total decimal.Decimal) {
	base = pricePerHour.Mul(hours).Round(2)
	fee = percentOf(base, feePercent)
	total = base.Add(fee)
	return base, fee, total
}

func (s *BookingService) granularity() time.Duration {
	if s.opts.SlotGranularity <= 0 {
		return utils.DefaultGranularity
	}
	return s.opts.SlotGranularity
}

// Create reserves a window on a slot as pending_payment and opens a payment
// intent for it. The booking is committed before the gateway is called; a
// gateway failure leaves it failed.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	if err := requireVerified(ctx, s.identity, s.opts, in.SeekerID); err != nil {
		return nil, err
	}

	now := s.opts.now()
	start := in.StartsAt.UTC()
	if !start.After(now) {
		return nil, ErrPastTime
	}
	duration := utils.HoursToDuration(in.DurationHours)
	if !in.DurationHours.IsPositive() || duration < s.opts.MinBookingDuration || duration%s.granularity() != 0 {
		return nil, fmt.Errorf("duration %s hours: %w", in.DurationHours, ErrInvalidWindow)
	}
	end := start.Add(duration)

	var booking models.Booking
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var slot models.AvailabilitySlot
		if err := tx.First(&slot, "id = ?", in.SlotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				var withdrawn int64
				tx.Unscoped().Model(&models.AvailabilitySlot{}).Where("id = ?", in.SlotID).Count(&withdrawn)
				if withdrawn > 0 {
					return fmt.Errorf("slot withdrawn: %w", ErrSlotUnavailable)
				}
			}
			return notFound(err, "slot")
		}
		if slot.CompanionID == in.SeekerID {
			return fmt.Errorf("cannot book your own slot: %w", ErrForbidden)
		}
		if slot.Status != models.SlotAvailable {
			return fmt.Errorf("slot is %s: %w", slot.Status, ErrSlotUnavailable)
		}
		if !utils.IsCandidateStart(slot.StartsAt, slot.EndsAt, start, duration, s.granularity(), now) {
			return ErrInvalidWindow
		}

		existing, err := bookingsOnSlot(tx, slot.ID)
		if err != nil {
			return err
		}
		if clash := liveOverlap(existing, start, end, now, uuid.Nil); clash != nil {
			return fmt.Errorf("window taken by booking %s: %w", clash.ID, ErrSlotUnavailable)
		}

		// Any concurrent create on this slot bumps the version, so only one
		// of two racing overlapping requests can commit.
		res := tx.Model(&models.AvailabilitySlot{}).
			Where("id = ? AND version = ? AND status = ?", slot.ID, slot.Version, models.SlotAvailable).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}

		hours := utils.DurationHours(start, end)
		base, fee, total := price(slot.PricePerHour, hours, s.opts.PlatformFeePercent)
		booking = models.Booking{
			AvailabilityID:   slot.ID,
			CompanionID:      slot.CompanionID,
			SeekerID:         in.SeekerID,
			Date:             slot.Date,
			StartsAt:         start,
			EndsAt:           end,
			DurationHours:    hours,
			BasePrice:        base,
			PlatformFee:      fee,
			TotalAmount:      total,
			CompanionPayout:  base,
			RefundAmount:     decimal.Zero,
			Status:           models.BookingPendingPayment,
			EscrowStatus:     models.EscrowPending,
			RequestExpiresAt: now.Add(s.opts.PaymentWindow),
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		return nil, err
	}

	payIntent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
		Amount:     booking.TotalAmount,
		BookingRef: booking.ID.String(),
		Provider:   in.Provider,
		PayerPhone: in.PayerPhone,
	})
	if err != nil {
		logger.Log.Error("🔥 payment intent failed, failing booking", "booking_id", booking.ID, "error", err)
		if _, failErr := s.fail(ctx, booking.ID); failErr != nil {
			logger.Log.Error("🔥 could not mark booking failed", "booking_id", booking.ID, "error", failErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentIntent, err)
	}

	provider := in.Provider
	if provider == "" {
		provider = payments.ProviderPayPal
	}
	err = inTx(ctx, s.db, func(tx *gorm.DB) error {
		var current models.Booking
		if err := tx.First(&current, "id = ?", booking.ID).Error; err != nil {
			return err
		}
		if err := casUpdate(tx, &models.Booking{}, current.ID, current.Version, map[string]interface{}{
			"payment_order_id": payIntent.IntentID,
		}); err != nil {
			return err
		}
		return tx.Create(&models.Payment{
			BookingID:       booking.ID,
			Provider:        provider,
			ProviderOrderID: &payIntent.IntentID,
			Amount:          booking.TotalAmount,
			Status:          models.PaymentPending,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	booking.PaymentOrderID = &payIntent.IntentID
	return &CreateBookingResult{Booking: &booking, Intent: payIntent}, nil
}

// fail moves an unpaid booking to failed and gives its window back. A booking
// whose payment window already lapsed is settled as expired instead; the
// returned status says which one was written.
func (s *BookingService) fail(ctx context.Context, bookingID uuid.UUID) (models.BookingStatus, error) {
	var settled models.BookingStatus
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		var b models.Booking
		if err := tx.First(&b, "id = ?", bookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		switch b.EffectiveStatus(s.opts.now()) {
		case models.BookingPendingPayment:
			settled = models.BookingFailed
		case models.BookingExpired:
			if b.Status == models.BookingExpired {
				// already off the table without a payment
				return &TransitionError{Entity: "booking", From: string(b.Status), To: string(models.BookingFailed), AlreadyApplied: true}
			}
			settled = models.BookingExpired
		default:
			return transitionError("booking", b.Status, models.BookingFailed)
		}
		if err := casUpdate(tx, &models.Booking{}, b.ID, b.Version, map[string]interface{}{
			"status": settled,
		}); err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).
			Where("booking_id = ? AND status = ?", b.ID, models.PaymentPending).
			Update("status", models.PaymentFailed).Error; err != nil {
			return err
		}
		return releaseSlot(tx, b.AvailabilityID, b.ID, s.opts.now())
	})
	return settled, err
}

func (s *BookingService) bookingByIntent(ctx context.Context, intentID string) (*models.Booking, error) {
	var b models.Booking
	if err := s.db.WithContext(ctx).First(&b, "payment_order_id = ?", intentID).Error; err != nil {
		return nil, notFound(err, "booking for payment intent")
	}
	return &b, nil
}

// ConfirmPaymentByIntent is the webhook entry point: it resolves the booking
// from the gateway's intent id.
func (s *BookingService) ConfirmPaymentByIntent(ctx context.Context, intentID, reference string) (*models.Booking, bool, error) {
	b, err := s.bookingByIntent(ctx, intentID)
	if err != nil {
		return nil, false, err
	}
	return s.ConfirmPayment(ctx, b.ID, reference)
}

// ConfirmPayment moves a paid booking to pending with escrow held. Replaying
// the same reference succeeds without effect and reports replayed=true.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, reference string) (*models.Booking, bool, error) {
	if reference == "" {
		return nil, false, fmt.Errorf("payment reference: %w", ErrInvalidInput)
	}

	var (
		booking  models.Booking
		replayed bool
		intents  []intent
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		replayed, intents = false, nil
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFound(err, "booking")
		}

		if booking.PaymentReference != nil {
			if *booking.PaymentReference == reference {
				replayed = true
				return nil
			}
			return ErrDuplicatePayment
		}

		now := s.opts.now()
		if status := booking.EffectiveStatus(now); status != models.BookingPendingPayment {
			return transitionError("booking", status, models.BookingPending)
		}

		if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, map[string]interface{}{
			"status":            models.BookingPending,
			"escrow_status":     models.EscrowHeld,
			"payment_reference": reference,
			"confirmed_at":      now,
		}); err != nil {
			return err
		}
		if err := markBooked(tx, booking.AvailabilityID); err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).
			Where("booking_id = ? AND status = ?", booking.ID, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":          models.PaymentSucceeded,
				"provider_txn_id": reference,
			}).Error; err != nil {
			return err
		}

		reward, err := completeReferral(tx, booking.SeekerID, s.opts.ReferralRewardAmount)
		if err != nil {
			return err
		}

		payload := map[string]interface{}{"booking_id": booking.ID, "start_time": booking.StartsAt}
		intents = append(intents,
			intent{booking.SeekerID, notifications.KindBookingConfirmed, payload},
			intent{booking.CompanionID, notifications.KindBookingRequested, payload},
		)
		if reward != nil {
			intents = append(intents, intent{reward.UserID, notifications.KindWalletCredited, map[string]interface{}{
				"transaction_id": reward.ID, "amount": reward.Amount.StringFixed(2), "type": reward.TransactionType,
			}})
		}

		return tx.First(&booking, "id = ?", booking.ID).Error
	})
	if err != nil {
		return nil, false, err
	}

	s.emit(ctx, intents)
	return &booking, replayed, nil
}

// PaymentFailed records a declined or abandoned payment for an intent. If the
// payment window had already lapsed the booking ends expired, not failed.
func (s *BookingService) PaymentFailed(ctx context.Context, intentID string) (*models.Booking, error) {
	b, err := s.bookingByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	settled, err := s.fail(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	kind := notifications.KindBookingFailed
	if settled == models.BookingExpired {
		kind = notifications.KindBookingExpired
	}
	s.emitter.Enqueue(ctx, b.SeekerID, kind, map[string]interface{}{"booking_id": b.ID})
	return s.get(ctx, b.ID)
}

func (s *BookingService) Accept(ctx context.Context, companionID, bookingID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if booking.CompanionID != companionID {
			return ErrForbidden
		}
		status := booking.EffectiveStatus(s.opts.now())
		if status != models.BookingPending {
			return transitionError("booking", status, models.BookingAccepted)
		}
		now := s.opts.now()
		if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, map[string]interface{}{
			"status":      models.BookingAccepted,
			"accepted_at": now,
		}); err != nil {
			return err
		}
		return tx.First(&booking, "id = ?", booking.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Enqueue(ctx, booking.SeekerID, notifications.KindBookingAccepted, map[string]interface{}{"booking_id": booking.ID})
	return &booking, nil
}

// Cancel ends a booking on behalf of one of its parties. Held escrow is
// refunded in full and the window is given back.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	var (
		booking models.Booking
		intents []intent
	)
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		intents = nil
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if !booking.IsParty(actorID) {
			return ErrForbidden
		}

		now := s.opts.now()
		status := booking.EffectiveStatus(now)
		updates := map[string]interface{}{
			"status":       models.BookingCancelled,
			"cancelled_by": actorID,
			"cancelled_at": now,
		}
		if reason != "" {
			updates["cancellation_reason"] = reason
		}

		switch status {
		case models.BookingPendingPayment:
			if actorID != booking.SeekerID {
				return fmt.Errorf("only the seeker can abandon an unpaid booking: %w", ErrForbidden)
			}
		case models.BookingPending, models.BookingAccepted:
			if !booking.EscrowStatus.CanTransitionTo(models.EscrowRefunded) {
				return transitionError("escrow", booking.EscrowStatus, models.EscrowRefunded)
			}
			updates["escrow_status"] = models.EscrowRefunded
			updates["refund_amount"] = booking.TotalAmount
		default:
			return transitionError("booking", status, models.BookingCancelled)
		}

		if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, updates); err != nil {
			return err
		}

		if status == models.BookingPendingPayment {
			if err := tx.Model(&models.Payment{}).
				Where("booking_id = ? AND status = ?", booking.ID, models.PaymentPending).
				Update("status", models.PaymentFailed).Error; err != nil {
				return err
			}
		} else {
			if err := markRefund(tx, booking.ID, booking.TotalAmount); err != nil {
				return err
			}
			if actorID == booking.CompanionID {
				if err := tx.Model(&models.Companion{}).Where("user_id = ?", booking.CompanionID).
					Update("cancellation_count", gorm.Expr("cancellation_count + 1")).Error; err != nil {
					return err
				}
			}
			intents = append(intents, intent{booking.SeekerID, notifications.KindRefundInitiated, map[string]interface{}{
				"booking_id": booking.ID, "amount": booking.TotalAmount.StringFixed(2),
			}})
		}

		if err := releaseSlot(tx, booking.AvailabilityID, booking.ID, now); err != nil {
			return err
		}

		other := booking.CompanionID
		if actorID == booking.CompanionID {
			other = booking.SeekerID
		}
		intents = append(intents, intent{other, notifications.KindBookingCancelled, map[string]interface{}{
			"booking_id": booking.ID, "reason": reason,
		}})
		return tx.First(&booking, "id = ?", booking.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, intents)
	return &booking, nil
}

// Complete releases escrow to the companion once the meetup has ended.
// Administrators may complete on the companion's behalf.
func (s *BookingService) Complete(ctx context.Context, actorID, bookingID uuid.UUID, asAdmin bool) (*models.Booking, error) {
	var booking models.Booking
	err := inTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if !asAdmin && booking.CompanionID != actorID {
			return ErrForbidden
		}

		now := s.opts.now()
		status := booking.EffectiveStatus(now)
		if status != models.BookingAccepted {
			return transitionError("booking", status, models.BookingCompleted)
		}
		if now.Before(booking.EndsAt) {
			return &TransitionError{Entity: "booking", From: string(status), To: string(models.BookingCompleted), Detail: "meetup has not ended"}
		}
		if !booking.EscrowStatus.CanTransitionTo(models.EscrowReleased) {
			return transitionError("escrow", booking.EscrowStatus, models.EscrowReleased)
		}

		if err := casUpdate(tx, &models.Booking{}, booking.ID, booking.Version, map[string]interface{}{
			"status":        models.BookingCompleted,
			"escrow_status": models.EscrowReleased,
			"completed_at":  now,
		}); err != nil {
			return err
		}
		return tx.First(&booking, "id = ?", booking.ID).Error
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"booking_id": booking.ID, "companion_payout": booking.CompanionPayout.StringFixed(2)}
	s.emit(ctx, []intent{
		{booking.SeekerID, notifications.KindBookingCompleted, payload},
		{booking.CompanionID, notifications.KindBookingCompleted, payload},
	})
	return &booking, nil
}

func (s *BookingService) get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", bookingID).Error; err != nil {
		return nil, notFound(err, "booking")
	}
	b.Status = b.EffectiveStatus(s.opts.now())
	return &b, nil
}

// Get returns a booking visible to actorID, with lapsed payment windows
// reported as expired.
func (s *BookingService) Get(ctx context.Context, actorID, bookingID uuid.UUID, asAdmin bool) (*models.Booking, error) {
	b, err := s.get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !asAdmin && !b.IsParty(actorID) {
		return nil, ErrForbidden
	}
	return b, nil
}

type BookingFilter struct {
	SeekerID    *uuid.UUID
	CompanionID *uuid.UUID
	Status      models.BookingStatus
}

// List filters on effective status, so an unpaid booking past its window is
// listed as expired whether or not the sweeper has run.
func (s *BookingService) List(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	q := s.db.WithContext(ctx).Model(&models.Booking{})
	if filter.SeekerID != nil {
		q = q.Where("seeker_id = ?", *filter.SeekerID)
	}
	if filter.CompanionID != nil {
		q = q.Where("companion_id = ?", *filter.CompanionID)
	}
	switch filter.Status {
	case "":
	case models.BookingPendingPayment:
		q = q.Where("status = ?", models.BookingPendingPayment)
	case models.BookingExpired:
		q = q.Where("status IN ?", []models.BookingStatus{models.BookingExpired, models.BookingPendingPayment})
	default:
		q = q.Where("status = ?", filter.Status)
	}

	var rows []models.Booking
	if err := q.Order("starts_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	now := s.opts.now()
	out := rows[:0]
	for _, b := range rows {
		b.Status = b.EffectiveStatus(now)
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ExpireStale persists expiry for unpaid bookings whose window lapsed. Reads
// already treat them as expired; this only tidies the stored rows.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	var candidates []models.Booking
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.BookingPendingPayment).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	now := s.opts.now()
	expired := 0
	for _, c := range candidates {
		if c.EffectiveStatus(now) != models.BookingExpired {
			continue
		}
		err := inTx(ctx, s.db, func(tx *gorm.DB) error {
			var b models.Booking
			if err := tx.First(&b, "id = ?", c.ID).Error; err != nil {
				return err
			}
			if b.Status != models.BookingPendingPayment {
				return nil
			}
			if err := casUpdate(tx, &models.Booking{}, b.ID, b.Version, map[string]interface{}{
				"status": models.BookingExpired,
			}); err != nil {
				return err
			}
			expired++
			return tx.Model(&models.Payment{}).
				Where("booking_id = ? AND status = ?", b.ID, models.PaymentPending).
				Update("status", models.PaymentFailed).Error
		})
		if err != nil {
			return expired, fmt.Errorf("expire booking %s: %w", c.ID, err)
		}
		s.emitter.Enqueue(ctx, c.SeekerID, notifications.KindBookingExpired, map[string]interface{}{"booking_id": c.ID})
	}
	return expired, nil
}

// UpcomingAccepted lists accepted bookings starting within [from, to).
func (s *BookingService) UpcomingAccepted(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.BookingAccepted).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, b := range rows {
		if !b.StartsAt.Before(from) && b.StartsAt.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// RemindUpcoming emits a reminder to both parties of every accepted meetup
// starting in [now+lead, now+lead+every). Calling it once per every covers
// each meetup exactly once.
func (s *BookingService) RemindUpcoming(ctx context.Context, lead, every time.Duration) (int, error) {
	from := s.opts.now().Add(lead)
	upcoming, err := s.UpcomingAccepted(ctx, from, from.Add(every))
	if err != nil {
		return 0, err
	}
	for _, b := range upcoming {
		payload := map[string]interface{}{"booking_id": b.ID, "start_time": b.StartsAt}
		s.emitter.Enqueue(ctx, b.SeekerID, notifications.KindMeetupReminder, payload)
		s.emitter.Enqueue(ctx, b.CompanionID, notifications.KindMeetupReminder, payload)
	}
	return len(upcoming), nil
}

// markRefund flags the succeeded payment of a booking for a refund of amount.
func markRefund(tx *gorm.DB, bookingID uuid.UUID, amount decimal.Decimal) error {
	return tx.Model(&models.Payment{}).
		Where("booking_id = ? AND status = ?", bookingID, models.PaymentSucceeded).
		Updates(map[string]interface{}{
			"refund_status": "pending",
			"refund_amount": amount,
		}).Error
}

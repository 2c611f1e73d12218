package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestCreateBookingPricesAndBlocksOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	first := f.user(t, models.RoleSeeker)
	second := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	b := f.book(t, first.ID, slot, "10:00", 2)
	if !b.TotalAmount.Equal(dec("1070.00")) {
		t.Fatalf("total_amount = %s, want 1070.00", b.TotalAmount)
	}
	if !b.CompanionPayout.Equal(dec("1000.00")) || !b.PlatformFee.Equal(dec("70.00")) {
		t.Fatalf("payout = %s fee = %s", b.CompanionPayout, b.PlatformFee)
	}
	if b.Status != models.BookingPendingPayment || b.EscrowStatus != models.EscrowPending {
		t.Fatalf("status = %s/%s", b.Status, b.EscrowStatus)
	}
	if b.PaymentOrderID == nil || *b.PaymentOrderID != "intent-"+b.ID.String() {
		t.Fatalf("payment_order_id = %v", b.PaymentOrderID)
	}

	_, err := f.bookings.Create(ctx, CreateBookingInput{
		SeekerID: second.ID, SlotID: slot.ID, StartsAt: at("11:00"), DurationHours: decimal.NewFromInt(2),
	})
	wantErr(t, err, ErrSlotUnavailable)

	// a disjoint window on the same slot is still free while the first is unpaid
	f.book(t, second.ID, slot, "12:00", 2)
}

func TestCreateBookingRejectsPastAndOffGridStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	cases := []struct {
		name  string
		start time.Time
		hours string
		want  error
	}{
		{"past", testStart.Add(-time.Hour), "1", ErrPastTime},
		{"now", testStart, "1", ErrPastTime},
		{"off grid", at("10:10"), "1", ErrInvalidWindow},
		{"below minimum", at("10:00"), "0.5", ErrInvalidWindow},
		{"overruns slot", at("13:00"), "2", ErrInvalidWindow},
		{"before slot", at("09:00"), "2", ErrInvalidWindow},
	}
	for _, tc := range cases {
		_, err := f.bookings.Create(ctx, CreateBookingInput{
			SeekerID: seeker.ID, SlotID: slot.ID, StartsAt: tc.start, DurationHours: dec(tc.hours),
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	_, err := f.bookings.Create(ctx, CreateBookingInput{
		SeekerID: companion.ID, SlotID: slot.ID, StartsAt: at("10:00"), DurationHours: decimal.NewFromInt(1),
	})
	wantErr(t, err, ErrForbidden)
}

func TestConcurrentOverlappingCreatesAdmitOne(t *testing.T) {
	f := newFixture(t)
	companion := f.user(t, models.RoleCompanion)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	const racers = 8
	seekers := make([]models.User, racers)
	for i := range seekers {
		seekers[i] = f.user(t, models.RoleSeeker)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at("10:00").Add(time.Duration(i%4) * 15 * time.Minute)
			_, err := f.bookings.Create(context.Background(), CreateBookingInput{
				SeekerID: seekers[i].ID, SlotID: slot.ID, StartsAt: start, DurationHours: decimal.NewFromInt(2),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrConcurrentUpdate):
			default:
				t.Errorf("racer %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
	var live int64
	f.db.Model(&models.Booking{}).Where("availability_id = ? AND status = ?", slot.ID, models.BookingPendingPayment).Count(&live)
	if live != 1 {
		t.Fatalf("live bookings = %d, want 1", live)
	}
}

func TestGatewayFailureLeavesBookingFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	f.gateway.err = errors.New("gateway timeout")
	_, err := f.bookings.Create(ctx, CreateBookingInput{
		SeekerID: seeker.ID, SlotID: slot.ID, StartsAt: at("10:00"), DurationHours: decimal.NewFromInt(2),
	})
	wantErr(t, err, ErrPaymentIntent)

	var rows []models.Booking
	f.db.Where("seeker_id = ?", seeker.ID).Find(&rows)
	if len(rows) != 1 || rows[0].Status != models.BookingFailed {
		t.Fatalf("bookings after gateway failure = %+v", rows)
	}

	f.gateway.err = nil
	f.book(t, seeker.ID, slot, "10:00", 2)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.book(t, seeker.ID, slot, "10:00", 2)

	first, replayed, err := f.bookings.ConfirmPaymentByIntent(ctx, *b.PaymentOrderID, "TXN-1")
	if err != nil || replayed {
		t.Fatalf("first confirm: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := f.bookings.ConfirmPayment(ctx, b.ID, "TXN-1")
	if err != nil || !replayed {
		t.Fatalf("replayed confirm: replayed=%v err=%v", replayed, err)
	}
	if first.Status != models.BookingPending || second.Status != first.Status ||
		second.EscrowStatus != models.EscrowHeld || second.Version != first.Version {
		t.Fatalf("replay changed state: %+v vs %+v", first, second)
	}
	if n := f.emitter.count(seeker.ID, notifications.KindBookingConfirmed); n != 1 {
		t.Fatalf("booking_confirmed intents = %d, want 1", n)
	}

	var payment models.Payment
	if err := f.db.First(&payment, "booking_id = ?", b.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != models.PaymentSucceeded || payment.ProviderTxnID == nil || *payment.ProviderTxnID != "TXN-1" {
		t.Fatalf("payment = %+v", payment)
	}

	_, _, err = f.bookings.ConfirmPayment(ctx, b.ID, "TXN-2")
	wantErr(t, err, ErrDuplicatePayment)
}

func TestConfirmAfterPaymentWindowIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.book(t, seeker.ID, slot, "10:00", 2)

	f.clock.Advance(f.opts.PaymentWindow + time.Minute)
	_, _, err := f.bookings.ConfirmPayment(ctx, b.ID, "TXN-late")
	wantErr(t, err, ErrInvalidTransition)

	expired, err := f.bookings.List(ctx, BookingFilter{SeekerID: &seeker.ID, Status: models.BookingExpired})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != b.ID {
		t.Fatalf("expired list = %+v", expired)
	}
	unpaid, err := f.bookings.List(ctx, BookingFilter{SeekerID: &seeker.ID, Status: models.BookingPendingPayment})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unpaid) != 0 {
		t.Fatalf("lapsed booking still listed as pending_payment")
	}

	// the lapsed window is bookable again
	other := f.user(t, models.RoleSeeker)
	f.book(t, other.ID, slot, "10:00", 2)
}

func TestPaymentFailedReleasesWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.book(t, seeker.ID, slot, "10:00", 2)

	failed, err := f.bookings.PaymentFailed(ctx, *b.PaymentOrderID)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if failed.Status != models.BookingFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}

	_, err = f.bookings.PaymentFailed(ctx, *b.PaymentOrderID)
	var te *TransitionError
	if !errors.As(err, &te) || !te.AlreadyApplied {
		t.Fatalf("second failure err = %v, want already applied", err)
	}

	f.book(t, seeker.ID, slot, "10:00", 2)
}

func TestPaymentFailedAfterWindowSettlesAsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.book(t, seeker.ID, slot, "10:00", 2)

	f.clock.Advance(f.opts.PaymentWindow + 5*time.Minute)
	settled, err := f.bookings.PaymentFailed(ctx, *b.PaymentOrderID)
	if err != nil {
		t.Fatalf("late failure: %v", err)
	}
	if settled.Status != models.BookingExpired {
		t.Fatalf("returned status = %s, want expired", settled.Status)
	}
	if stored := f.reload(t, b.ID); stored.Status != models.BookingExpired {
		t.Fatalf("stored status = %s, want expired", stored.Status)
	}
	if n := f.emitter.count(seeker.ID, notifications.KindBookingExpired); n != 1 {
		t.Fatalf("booking_expired intents = %d, want 1", n)
	}
	if n := f.emitter.count(seeker.ID, notifications.KindBookingFailed); n != 0 {
		t.Fatalf("booking_failed intents = %d, want 0", n)
	}

	_, err = f.bookings.PaymentFailed(ctx, *b.PaymentOrderID)
	var te *TransitionError
	if !errors.As(err, &te) || !te.AlreadyApplied {
		t.Fatalf("repeat failure err = %v, want already applied", err)
	}
}

func TestCreateRetriesWhenSlotVersionMoves(t *testing.T) {
	f := newFixture(t)
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	reads := bumpVersionOnRead(t, f.db, "availability_slots", 1)
	b := f.book(t, seeker.ID, slot, "10:00", 2)
	if *reads < 2 {
		t.Fatalf("slot reads = %d, want a retry after the lost version check", *reads)
	}

	var stored models.AvailabilitySlot
	if err := f.db.First(&stored, "id = ?", slot.ID).Error; err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if stored.Version != slot.Version+1 {
		t.Fatalf("slot version = %d, want %d", stored.Version, slot.Version+1)
	}
	if f.reload(t, b.ID).Status != models.BookingPendingPayment {
		t.Fatalf("booking not created on retry")
	}
}

func TestCreateGivesUpWhenSlotKeepsMoving(t *testing.T) {
	f := newFixture(t)
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)

	bumpVersionOnRead(t, f.db, "availability_slots", -1)
	_, err := f.bookings.Create(context.Background(), CreateBookingInput{
		SeekerID: seeker.ID, SlotID: slot.ID, StartsAt: at("10:00"), DurationHours: decimal.NewFromInt(2),
	})
	wantErr(t, err, ErrConcurrentUpdate)

	var n int64
	f.db.Model(&models.Booking{}).Where("availability_id = ?", slot.ID).Count(&n)
	if n != 0 {
		t.Fatalf("bookings = %d, want none after lost races", n)
	}
	if f.gateway.calls != 0 {
		t.Fatalf("gateway called %d times for an uncommitted booking", f.gateway.calls)
	}
}

func TestBookingTransitionRejectsStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.paid(t, seeker.ID, slot, "10:00", 2)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return casUpdate(tx, &models.Booking{}, b.ID, b.Version-1, map[string]interface{}{"status": models.BookingAccepted})
	})
	wantErr(t, err, errStale)
	if stored := f.reload(t, b.ID); stored.Status != models.BookingPending || stored.Version != b.Version {
		t.Fatalf("stale write applied: %+v", stored)
	}

	bumpVersionOnRead(t, f.db, "bookings", -1)
	_, err = f.bookings.Accept(ctx, companion.ID, b.ID)
	wantErr(t, err, ErrConcurrentUpdate)
}

func TestAcceptAndCompleteReleaseEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.paid(t, seeker.ID, slot, "10:00", 2)

	_, err := f.bookings.Accept(ctx, seeker.ID, b.ID)
	wantErr(t, err, ErrForbidden)

	if _, err := f.bookings.Accept(ctx, companion.ID, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = f.bookings.Accept(ctx, companion.ID, b.ID)
	wantErr(t, err, ErrInvalidTransition)

	_, err = f.bookings.Complete(ctx, companion.ID, b.ID, false)
	wantErr(t, err, ErrInvalidTransition)

	f.clock.Set(at("12:00"))
	done, err := f.bookings.Complete(ctx, companion.ID, b.ID, false)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.BookingCompleted || done.EscrowStatus != models.EscrowReleased {
		t.Fatalf("status = %s/%s", done.Status, done.EscrowStatus)
	}
	if bal := f.balance(t, companion.ID); !bal.Equal(dec("1000")) {
		t.Fatalf("balance = %s, want 1000", bal)
	}

	_, err = f.bookings.Complete(ctx, companion.ID, b.ID, false)
	var te *TransitionError
	if !errors.As(err, &te) || !te.AlreadyApplied {
		t.Fatalf("second complete err = %v, want already applied", err)
	}
}

func TestCancelRefundsHeldEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.accepted(t, seeker.ID, slot, "10:00", 2)

	stranger := f.user(t, models.RoleSeeker)
	_, err := f.bookings.Cancel(ctx, stranger.ID, b.ID, "")
	wantErr(t, err, ErrForbidden)

	cancelled, err := f.bookings.Cancel(ctx, seeker.ID, b.ID, "running late")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.EscrowStatus != models.EscrowRefunded {
		t.Fatalf("status = %s/%s", cancelled.Status, cancelled.EscrowStatus)
	}
	if !cancelled.RefundAmount.Equal(dec("1070")) {
		t.Fatalf("refund_amount = %s", cancelled.RefundAmount)
	}

	var payment models.Payment
	f.db.First(&payment, "booking_id = ?", b.ID)
	if payment.RefundStatus == nil || *payment.RefundStatus != "pending" {
		t.Fatalf("payment refund marker = %+v", payment.RefundStatus)
	}
	if f.emitter.count(seeker.ID, notifications.KindRefundInitiated) != 1 {
		t.Fatalf("refund intent not emitted")
	}
	if f.emitter.count(companion.ID, notifications.KindBookingCancelled) != 1 {
		t.Fatalf("cancellation intent not emitted to companion")
	}

	_, err = f.bookings.Cancel(ctx, seeker.ID, b.ID, "")
	wantErr(t, err, ErrInvalidTransition)

	f.clock.Set(at("12:00"))
	if bal := f.balance(t, companion.ID); !bal.IsZero() {
		t.Fatalf("refunded booking counted in balance: %s", bal)
	}
}

func TestOnlySeekerAbandonsUnpaidBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.book(t, seeker.ID, slot, "10:00", 2)

	_, err := f.bookings.Cancel(ctx, companion.ID, b.ID, "")
	wantErr(t, err, ErrForbidden)

	cancelled, err := f.bookings.Cancel(ctx, seeker.ID, b.ID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.EscrowStatus != models.EscrowPending {
		t.Fatalf("escrow = %s, want pending", cancelled.EscrowStatus)
	}
}

func TestExpireStalePersistsLapsedBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	stale := f.book(t, seeker.ID, slot, "10:00", 1)

	f.clock.Advance(10 * time.Minute)
	fresh := f.book(t, seeker.ID, slot, "12:00", 1)
	f.clock.Advance(6 * time.Minute)

	n, err := f.bookings.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	if got := f.reload(t, stale.ID); got.Status != models.BookingExpired {
		t.Fatalf("stale status = %s", got.Status)
	}
	if got := f.reload(t, fresh.ID); got.Status != models.BookingPendingPayment {
		t.Fatalf("fresh status = %s", got.Status)
	}
}

func TestReferralRewardOnFirstConfirmedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer, err := f.accounts.Register(ctx, RegisterInput{
		FullName: "Asha Companion", Email: "asha@example.com", Password: "secret1", Role: models.RoleCompanion, City: "Pune",
	})
	if err != nil {
		t.Fatalf("register referrer: %v", err)
	}
	seeker, err := f.accounts.Register(ctx, RegisterInput{
		FullName: "Ravi Seeker", Email: "ravi@example.com", Password: "secret1", ReferredByCode: *referrer.ReferralCode,
	})
	if err != nil {
		t.Fatalf("register seeker: %v", err)
	}
	f.db.Model(&models.User{}).Where("id IN ?", []uuid.UUID{referrer.ID, seeker.ID}).
		Update("verification_status", models.VerificationVerified)

	companion := f.user(t, models.RoleCompanion)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	f.paid(t, seeker.ID, slot, "10:00", 1)
	f.paid(t, seeker.ID, slot, "12:00", 1)

	entries, err := f.credits.ListTransactions(ctx, referrer.ID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 || entries[0].TransactionType != models.TransactionReferral || !entries[0].Amount.Equal(dec("50")) {
		t.Fatalf("referral entries = %+v", entries)
	}
	if !entries[0].BalanceBefore.IsZero() || !entries[0].BalanceAfter.Equal(dec("50")) {
		t.Fatalf("balance stamps = %s -> %s", entries[0].BalanceBefore, entries[0].BalanceAfter)
	}
}

func TestRemindUpcomingCoversAcceptedMeetups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	companion := f.user(t, models.RoleCompanion)
	seeker := f.user(t, models.RoleSeeker)
	slot := f.publish(t, companion.ID, "10:00", "14:00", 500)
	b := f.accepted(t, seeker.ID, slot, "10:00", 1)

	n, err := f.bookings.RemindUpcoming(ctx, time.Hour, 15*time.Minute)
	if err != nil || n != 0 {
		t.Fatalf("early reminder: n=%d err=%v", n, err)
	}

	f.clock.Set(b.StartsAt.Add(-time.Hour))
	n, err = f.bookings.RemindUpcoming(ctx, time.Hour, 15*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("reminder: n=%d err=%v", n, err)
	}
	if f.emitter.count(seeker.ID, notifications.KindMeetupReminder) != 1 ||
		f.emitter.count(companion.ID, notifications.KindMeetupReminder) != 1 {
		t.Fatalf("reminder intents missing")
	}
}

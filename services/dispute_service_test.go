package services

import (
	"context"
	"errors"
	"testing"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/google/uuid"
)

type disputeCase struct {
	f         *fixture
	seeker    models.User
	companion models.User
	admin     models.User
	booking   *models.Booking
}

// newDisputeCase prepares an accepted 10:00-12:00 booking worth 1070.
func newDisputeCase(t *testing.T) *disputeCase {
	t.Helper()
	f := newFixture(t)
	c := &disputeCase{
		f:         f,
		seeker:    f.user(t, models.RoleSeeker),
		companion: f.user(t, models.RoleCompanion),
		admin:     f.user(t, models.RoleAdmin),
	}
	slot := f.publish(t, c.companion.ID, "10:00", "14:00", 500)
	c.booking = f.accepted(t, c.seeker.ID, slot, "10:00", 2)
	return c
}

func (c *disputeCase) raise(t *testing.T, by uuid.UUID) *models.Dispute {
	t.Helper()
	d, err := c.f.disputes.Raise(context.Background(), RaiseDisputeInput{
		BookingID:    c.booking.ID,
		RaisedBy:     by,
		Reason:       "companion arrived an hour late",
		EvidenceURLs: []string{"https://res.cloudinary.com/demo/raw/upload/chat.png"},
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	return d
}

func TestDisputePartialRefundSettlesBooking(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	if !c.booking.TotalAmount.Equal(dec("1070")) {
		t.Fatalf("total = %s, want 1070", c.booking.TotalAmount)
	}

	d := c.raise(t, c.seeker.ID)
	if !d.HoldsEscrow || d.AgainstUserID != c.companion.ID {
		t.Fatalf("dispute = %+v", d)
	}
	frozen := c.f.reload(t, c.booking.ID)
	if frozen.Status != models.BookingDisputed || frozen.EscrowStatus != models.EscrowDisputed {
		t.Fatalf("booking = %s/%s, want disputed/disputed", frozen.Status, frozen.EscrowStatus)
	}
	if n := c.f.emitter.count(c.companion.ID, notifications.KindDisputeRaised); n != 1 {
		t.Fatalf("dispute_raised sent %d times", n)
	}

	resolved, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{
		DisputeID:    d.ID,
		AdminID:      c.admin.ID,
		RefundAmount: dec("300"),
		Notes:        "late arrival confirmed",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.DisputeResolved || resolved.Outcome == nil || *resolved.Outcome != models.OutcomePartialRefund {
		t.Fatalf("dispute = %+v", resolved)
	}

	b := c.f.reload(t, c.booking.ID)
	if b.Status != models.BookingCompleted || b.EscrowStatus != models.EscrowRefunded || !b.RefundAmount.Equal(dec("300")) {
		t.Fatalf("booking = %s/%s refund %s", b.Status, b.EscrowStatus, b.RefundAmount)
	}
	if bal := c.f.balance(t, c.companion.ID); !bal.IsZero() {
		t.Fatalf("refunded booking counted in balance: %s", bal)
	}
	if n := c.f.emitter.count(c.seeker.ID, notifications.KindRefundInitiated); n != 1 {
		t.Fatalf("refund_initiated sent %d times", n)
	}

	var payment models.Payment
	if err := c.f.db.First(&payment, "booking_id = ?", b.ID).Error; err != nil {
		t.Fatalf("payment: %v", err)
	}
	if !payment.RefundAmount.Equal(dec("300")) {
		t.Fatalf("payment refund = %s, want 300", payment.RefundAmount)
	}

	_, err = c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("0")})
	var te *TransitionError
	if !errors.As(err, &te) || !te.AlreadyApplied {
		t.Fatalf("second resolve err = %v", err)
	}
}

func TestDisputeRefundBoundedByTotal(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	d := c.raise(t, c.companion.ID)

	_, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("1070.01")})
	wantErr(t, err, ErrRefundExceedsTotal)

	_, err = c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("-1")})
	wantErr(t, err, ErrInvalidInput)

	_, err = c.f.disputes.Resolve(ctx, ResolveDisputeInput{
		DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("300"), Outcome: models.OutcomeFullRefund,
	})
	wantErr(t, err, ErrInvalidInput)

	still, err := c.f.disputes.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if still.Status != models.DisputeOpen {
		t.Fatalf("status = %s after rejected resolutions", still.Status)
	}

	full, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("1070")})
	if err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if *full.Outcome != models.OutcomeFullRefund {
		t.Fatalf("outcome = %s", *full.Outcome)
	}
}

func TestDisputeReleaseCountsTowardBalance(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	d := c.raise(t, c.seeker.ID)

	if _, err := c.f.disputes.Review(ctx, c.admin.ID, d.ID); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("0")}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	b := c.f.reload(t, c.booking.ID)
	if b.Status != models.BookingCompleted || b.EscrowStatus != models.EscrowReleased {
		t.Fatalf("booking = %s/%s", b.Status, b.EscrowStatus)
	}
	if bal := c.f.balance(t, c.companion.ID); !bal.Equal(dec("1000")) {
		t.Fatalf("balance = %s, want 1000", bal)
	}
}

func TestRaiseDisputeRules(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	stranger := c.f.user(t, models.RoleSeeker)

	_, err := c.f.disputes.Raise(ctx, RaiseDisputeInput{BookingID: c.booking.ID, RaisedBy: c.seeker.ID, Reason: " "})
	wantErr(t, err, ErrReasonRequired)

	_, err = c.f.disputes.Raise(ctx, RaiseDisputeInput{BookingID: c.booking.ID, RaisedBy: stranger.ID, Reason: "x"})
	wantErr(t, err, ErrForbidden)

	c.raise(t, c.seeker.ID)
	_, err = c.f.disputes.Raise(ctx, RaiseDisputeInput{BookingID: c.booking.ID, RaisedBy: c.companion.ID, Reason: "counter claim"})
	wantErr(t, err, ErrConflict)

	slot := c.f.publish(t, c.companion.ID, "15:00", "18:00", 500)
	unaccepted := c.f.paid(t, c.seeker.ID, slot, "15:00", 1)
	_, err = c.f.disputes.Raise(ctx, RaiseDisputeInput{BookingID: unaccepted.ID, RaisedBy: c.seeker.ID, Reason: "x"})
	wantErr(t, err, ErrInvalidTransition)
}

func TestDisputeOnSettledBookingMovesNoMoney(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	c.f.clock.Set(at("12:00"))
	if _, err := c.f.bookings.Complete(ctx, c.seeker.ID, c.booking.ID, false); err != nil {
		t.Fatalf("complete: %v", err)
	}

	d := c.raise(t, c.seeker.ID)
	if d.HoldsEscrow {
		t.Fatalf("dispute on completed booking froze escrow")
	}
	if b := c.f.reload(t, c.booking.ID); b.Status != models.BookingCompleted || b.EscrowStatus != models.EscrowReleased {
		t.Fatalf("booking = %s/%s", b.Status, b.EscrowStatus)
	}

	_, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("100")})
	var te *TransitionError
	if !errors.As(err, &te) || te.Detail != "booking never disputed" {
		t.Fatalf("resolve err = %v", err)
	}

	closed, err := c.f.disputes.Close(ctx, c.admin.ID, d.ID, "no evidence")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.DisputeClosed {
		t.Fatalf("status = %s", closed.Status)
	}
	if bal := c.f.balance(t, c.companion.ID); !bal.Equal(dec("1000")) {
		t.Fatalf("balance = %s, want 1000", bal)
	}
}

func TestCloseRefusedWhileEscrowFrozen(t *testing.T) {
	c := newDisputeCase(t)
	d := c.raise(t, c.seeker.ID)

	_, err := c.f.disputes.Close(context.Background(), c.admin.ID, d.ID, "")
	wantErr(t, err, ErrInvalidTransition)
	if b := c.f.reload(t, c.booking.ID); b.EscrowStatus != models.EscrowDisputed {
		t.Fatalf("escrow = %s", b.EscrowStatus)
	}
}

func TestAddEvidenceWhileActive(t *testing.T) {
	c := newDisputeCase(t)
	ctx := context.Background()
	d := c.raise(t, c.seeker.ID)

	updated, err := c.f.disputes.AddEvidence(ctx, c.companion.ID, d.ID, []string{" https://example.com/receipt.jpg ", ""})
	if err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	want := "https://res.cloudinary.com/demo/raw/upload/chat.png\nhttps://example.com/receipt.jpg"
	if updated.EvidenceURLs == nil || *updated.EvidenceURLs != want {
		t.Fatalf("evidence = %v", updated.EvidenceURLs)
	}

	stranger := c.f.user(t, models.RoleSeeker)
	_, err = c.f.disputes.AddEvidence(ctx, stranger.ID, d.ID, []string{"https://example.com/x.jpg"})
	wantErr(t, err, ErrForbidden)
	_, err = c.f.disputes.AddEvidence(ctx, c.seeker.ID, d.ID, []string{"  "})
	wantErr(t, err, ErrInvalidInput)

	if _, err := c.f.disputes.Resolve(ctx, ResolveDisputeInput{DisputeID: d.ID, AdminID: c.admin.ID, RefundAmount: dec("0")}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, err = c.f.disputes.AddEvidence(ctx, c.seeker.ID, d.ID, []string{"https://example.com/late.jpg"})
	wantErr(t, err, ErrInvalidTransition)
}

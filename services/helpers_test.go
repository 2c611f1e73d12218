package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/companion_booking/database"
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/anjiri1684/companion_booking/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "booking.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: transactions queue behind each other the way row
	// locks serialize them on postgres
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Intent{IntentID: "intent-" + req.BookingRef, ClientSession: "session"}, nil
}

type recordingEmitter struct {
	mu      sync.Mutex
	intents []notifications.Intent
}

func (r *recordingEmitter) Enqueue(ctx context.Context, userID uuid.UUID, kind notifications.Kind, payload map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, notifications.Intent{UserID: userID, Kind: kind, Payload: payload})
}

func (r *recordingEmitter) count(userID uuid.UUID, kind notifications.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, in := range r.intents {
		if in.UserID == userID && in.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	db      *gorm.DB
	clock   *testClock
	gateway *fakeGateway
	emitter *recordingEmitter
	opts    Options

	accounts     *AccountService
	availability *AvailabilityService
	bookings     *BookingService
	ledger       *LedgerService
	payouts      *PayoutService
	disputes     *DisputeService
	credits      *CreditService
}

// base instant for every test: 08:00 UTC on the scenario date
var testStart = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

const testDate = "2025-01-10"

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:      openTestDB(t),
		clock:   &testClock{now: testStart},
		gateway: &fakeGateway{},
		emitter: &recordingEmitter{},
	}
	f.opts = DefaultOptions()
	f.opts.Now = f.clock.Now

	identity := NewStoredIdentity(f.db)
	f.credits = NewCreditService(f.db, f.emitter, f.opts)
	f.accounts = NewAccountService(f.db, f.credits)
	f.availability = NewAvailabilityService(f.db, identity, f.opts)
	f.bookings = NewBookingService(f.db, f.gateway, f.emitter, identity, f.opts)
	f.ledger = NewLedgerService(f.db)
	f.payouts = NewPayoutService(f.db, f.emitter, nil, nil, f.opts)
	f.disputes = NewDisputeService(f.db, f.emitter, f.opts)
	return f
}

func (f *fixture) user(t *testing.T, role models.Role) models.User {
	t.Helper()
	u := models.User{
		FullName:           string(role) + " " + uuid.NewString()[:8],
		Email:              uuid.NewString() + "@example.com",
		Password:           "x",
		Role:               role,
		VerificationStatus: models.VerificationVerified,
		IsActive:           true,
	}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role == models.RoleCompanion {
		if err := f.db.Create(&models.Companion{UserID: u.ID, City: "Pune", Area: "Baner"}).Error; err != nil {
			t.Fatalf("create companion: %v", err)
		}
	}
	return u
}

func (f *fixture) publish(t *testing.T, companionID uuid.UUID, start, end string, price int64) *models.AvailabilitySlot {
	t.Helper()
	slot, err := f.availability.Publish(context.Background(), SlotInput{
		CompanionID:  companionID,
		Date:         testDate,
		StartTime:    start,
		EndTime:      end,
		PricePerHour: decimal.NewFromInt(price),
	})
	if err != nil {
		t.Fatalf("publish %s-%s: %v", start, end, err)
	}
	return slot
}

func at(clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", testDate+" "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) book(t *testing.T, seekerID uuid.UUID, slot *models.AvailabilitySlot, start string, hours int64) *models.Booking {
	t.Helper()
	res, err := f.bookings.Create(context.Background(), CreateBookingInput{
		SeekerID:      seekerID,
		SlotID:        slot.ID,
		StartsAt:      at(start),
		DurationHours: decimal.NewFromInt(hours),
	})
	if err != nil {
		t.Fatalf("create booking at %s: %v", start, err)
	}
	return res.Booking
}

func (f *fixture) paid(t *testing.T, seekerID uuid.UUID, slot *models.AvailabilitySlot, start string, hours int64) *models.Booking {
	t.Helper()
	b := f.book(t, seekerID, slot, start, hours)
	confirmed, _, err := f.bookings.ConfirmPayment(context.Background(), b.ID, "ref-"+b.ID.String())
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	return confirmed
}

func (f *fixture) accepted(t *testing.T, seekerID uuid.UUID, slot *models.AvailabilitySlot, start string, hours int64) *models.Booking {
	t.Helper()
	b := f.paid(t, seekerID, slot, start, hours)
	accepted, err := f.bookings.Accept(context.Background(), b.CompanionID, b.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return accepted
}

func (f *fixture) reload(t *testing.T, bookingID uuid.UUID) models.Booking {
	t.Helper()
	var b models.Booking
	if err := f.db.First(&b, "id = ?", bookingID).Error; err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	return b
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// bumpVersionOnRead moves the version of every row read from table inside the
// reading transaction, the way a concurrent writer committing between read
// and write would. times < 0 keeps bumping forever. It returns the number of
// reads seen.
func bumpVersionOnRead(t *testing.T, db *gorm.DB, table string, times int) *int {
	t.Helper()
	reads := 0
	name := fmt.Sprintf("test:bump_%s_%d", table, time.Now().UnixNano())
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != table {
			return
		}
		reads++
		if times >= 0 && reads > times {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE " + table + " SET version = version + 1")
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })
	return &reads
}

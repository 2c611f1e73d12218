package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AvailabilityService struct {
	db       *gorm.DB
	identity IdentityVerifier
	opts     Options
}

func NewAvailabilityService(db *gorm.DB, identity IdentityVerifier, opts Options) *AvailabilityService {
	return &AvailabilityService{db: db, identity: identity, opts: opts}
}

// SlotInput describes a window in the platform time zone.
type SlotInput struct {
	CompanionID  uuid.UUID
	Date         string
	StartTime    string
	EndTime      string
	PricePerHour decimal.Decimal
}

type SlotFilter struct {
	CompanionID *uuid.UUID
	Date        string
	City        string
	Area        string
}

func (s *AvailabilityService) Publish(ctx context.Context, in SlotInput) (*models.AvailabilitySlot, error) {
	if !in.PricePerHour.IsPositive() {
		return nil, fmt.Errorf("price_per_hour must be positive: %w", ErrInvalidInput)
	}
	if err := requireVerified(ctx, s.identity, s.opts, in.CompanionID); err != nil {
		return nil, err
	}

	loc := s.opts.location()
	start, err := utils.ParseClock(in.Date, in.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", ErrInvalidInput)
	}
	end, err := utils.ParseClock(in.Date, in.EndTime, loc)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", ErrInvalidInput)
	}
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}
	if !end.After(s.opts.now()) {
		return nil, ErrPastTime
	}

	slot := models.AvailabilitySlot{
		CompanionID:  in.CompanionID,
		Date:         in.Date,
		StartsAt:     start.UTC(),
		EndsAt:       end.UTC(),
		PricePerHour: in.PricePerHour.Round(2),
		Status:       models.SlotAvailable,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCompanion(tx, in.CompanionID); err != nil {
			return err
		}

		conflict, err := overlappingAvailable(tx, in.CompanionID, in.Date, slot.StartsAt, slot.EndsAt, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict != nil {
			return fmt.Errorf("overlaps slot %s: %w", conflict.ID, ErrConflict)
		}
		return tx.Create(&slot).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// Withdraw soft-deletes a slot nobody is holding a claim on.
func (s *AvailabilityService) Withdraw(ctx context.Context, companionID, slotID uuid.UUID) error {
	return inTx(ctx, s.db, func(tx *gorm.DB) error {
		var slot models.AvailabilitySlot
		if err := tx.First(&slot, "id = ?", slotID).Error; err != nil {
			return notFound(err, "slot")
		}
		if slot.CompanionID != companionID {
			return ErrForbidden
		}

		bookings, err := bookingsOnSlot(tx, slotID)
		if err != nil {
			return err
		}
		now := s.opts.now()
		for _, b := range bookings {
			switch b.EffectiveStatus(now) {
			case models.BookingPendingPayment, models.BookingPending, models.BookingAccepted, models.BookingDisputed:
				return fmt.Errorf("booking %s is %s: %w", b.ID, b.EffectiveStatus(now), ErrSlotInUse)
			}
		}

		return casUpdate(tx, &models.AvailabilitySlot{}, slot.ID, slot.Version, map[string]interface{}{
			"deleted_at": now,
		})
	})
}

func (s *AvailabilityService) Get(ctx context.Context, slotID uuid.UUID) (*models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	if err := s.db.WithContext(ctx).First(&slot, "id = ?", slotID).Error; err != nil {
		return nil, notFound(err, "slot")
	}
	return &slot, nil
}

func (s *AvailabilityService) ListByCompanionDate(ctx context.Context, companionID uuid.UUID, date string) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := s.db.WithContext(ctx).
		Where("companion_id = ? AND date = ?", companionID, date).
		Order("starts_at asc").
		Find(&slots).Error
	return slots, err
}

func (s *AvailabilityService) SearchAvailable(ctx context.Context, filter SlotFilter) ([]models.AvailabilitySlot, error) {
	q := s.db.WithContext(ctx).Model(&models.AvailabilitySlot{}).
		Where("availability_slots.status = ?", models.SlotAvailable)
	if filter.CompanionID != nil {
		q = q.Where("availability_slots.companion_id = ?", *filter.CompanionID)
	}
	if filter.Date != "" {
		q = q.Where("availability_slots.date = ?", filter.Date)
	}
	if filter.City != "" || filter.Area != "" {
		q = q.Joins("JOIN companions ON companions.user_id = availability_slots.companion_id")
		if filter.City != "" {
			q = q.Where("companions.city = ?", filter.City)
		}
		if filter.Area != "" {
			q = q.Where("companions.area = ?", filter.Area)
		}
	}

	var slots []models.AvailabilitySlot
	if err := q.Order("availability_slots.starts_at asc").Find(&slots).Error; err != nil {
		return nil, err
	}

	now := s.opts.now()
	out := slots[:0]
	for _, slot := range slots {
		if slot.EndsAt.After(now) {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Candidates lists bookable start times for the given duration, leaving out
// windows already claimed by a live booking.
func (s *AvailabilityService) Candidates(ctx context.Context, slotID uuid.UUID, duration time.Duration) ([]time.Time, error) {
	if duration < s.opts.MinBookingDuration || duration%s.granularity() != 0 {
		return nil, ErrInvalidWindow
	}

	slot, err := s.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != models.SlotAvailable {
		return nil, nil
	}

	bookings, err := bookingsOnSlot(s.db.WithContext(ctx), slotID)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	var out []time.Time
	for _, start := range utils.CandidateStarts(slot.StartsAt, slot.EndsAt, duration, s.granularity(), now) {
		if liveOverlap(bookings, start, start.Add(duration), now, uuid.Nil) == nil {
			out = append(out, start)
		}
	}
	return out, nil
}

func (s *AvailabilityService) granularity() time.Duration {
	if s.opts.SlotGranularity <= 0 {
		return utils.DefaultGranularity
	}
	return s.opts.SlotGranularity
}

func overlappingAvailable(tx *gorm.DB, companionID uuid.UUID, date string, start, end time.Time, exclude uuid.UUID) (*models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	if err := tx.Where("companion_id = ? AND date = ? AND status = ?", companionID, date, models.SlotAvailable).
		Find(&slots).Error; err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].ID == exclude {
			continue
		}
		if utils.Overlaps(start, end, slots[i].StartsAt, slots[i].EndsAt) {
			return &slots[i], nil
		}
	}
	return nil, nil
}

func bookingsOnSlot(tx *gorm.DB, slotID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := tx.Where("availability_id = ? AND status NOT IN ?", slotID,
		[]models.BookingStatus{models.BookingCancelled, models.BookingExpired, models.BookingFailed}).
		Find(&bookings).Error
	return bookings, err
}

func liveOverlap(bookings []models.Booking, start, end, now time.Time, exclude uuid.UUID) *models.Booking {
	for i := range bookings {
		b := &bookings[i]
		if b.ID == exclude || !b.Live(now) {
			continue
		}
		if utils.Overlaps(start, end, b.StartsAt, b.EndsAt) {
			return b
		}
	}
	return nil
}

// markBooked flips an available slot to booked once a booking on it is paid.
func markBooked(tx *gorm.DB, slotID uuid.UUID) error {
	return tx.Model(&models.AvailabilitySlot{}).
		Where("id = ? AND status = ?", slotID, models.SlotAvailable).
		Updates(map[string]interface{}{
			"status":  models.SlotBooked,
			"version": gorm.Expr("version + 1"),
		}).Error
}

// releaseSlot reverts a booked slot once no live booking other than released
// still claims it. If the companion has since published an overlapping
// available slot, the reverted slot is withdrawn instead.
func releaseSlot(tx *gorm.DB, slotID, released uuid.UUID, now time.Time) error {
	var slot models.AvailabilitySlot
	if err := tx.First(&slot, "id = ?", slotID).Error; err != nil {
		return notFound(err, "slot")
	}
	if slot.Status != models.SlotBooked {
		return nil
	}

	bookings, err := bookingsOnSlot(tx, slotID)
	if err != nil {
		return err
	}
	for i := range bookings {
		if bookings[i].ID != released && bookings[i].Live(now) {
			return nil
		}
	}

	if _, err := lockCompanion(tx, slot.CompanionID); err != nil {
		return err
	}
	conflict, err := overlappingAvailable(tx, slot.CompanionID, slot.Date, slot.StartsAt, slot.EndsAt, slot.ID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{"status": models.SlotAvailable}
	if conflict != nil {
		updates["deleted_at"] = now
	}
	return casUpdate(tx, &models.AvailabilitySlot{}, slot.ID, slot.Version, updates)
}

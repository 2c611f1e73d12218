package handlers

import (
	"time"

	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateBookingRequest struct {
	SlotID        string          `json:"slot_id" validate:"required,uuid"`
	StartTime     time.Time       `json:"start_time" validate:"required"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Provider      string          `json:"provider" validate:"omitempty,oneof=paypal mpesa"`
	PayerPhone    string          `json:"payer_phone" validate:"required_if=Provider mpesa"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handlers) CreateBooking(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.Bookings.Create(c.UserContext(), services.CreateBookingInput{
		SeekerID:      who.UserID,
		SlotID:        uuid.MustParse(req.SlotID),
		StartsAt:      req.StartTime,
		DurationHours: req.DurationHours,
		Provider:      req.Provider,
		PayerPhone:    req.PayerPhone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handlers) GetBooking(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	booking, err := h.Bookings.Get(c.UserContext(), who.UserID, id, who.IsAdmin())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

func (h *Handlers) MyBookings(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	return h.listBookings(c, services.BookingFilter{SeekerID: &who.UserID})
}

func (h *Handlers) CompanionBookings(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	return h.listBookings(c, services.BookingFilter{CompanionID: &who.UserID})
}

func (h *Handlers) AdminListBookings(c *fiber.Ctx) error {
	return h.listBookings(c, services.BookingFilter{})
}

func (h *Handlers) listBookings(c *fiber.Ctx, filter services.BookingFilter) error {
	if raw := c.Query("status"); raw != "" {
		status := models.BookingStatus(raw)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown booking status"})
		}
		filter.Status = status
	}
	bookings, err := h.Bookings.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(bookings)
}

func (h *Handlers) CancelBooking(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	var req CancelBookingRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	booking, err := h.Bookings.Cancel(c.UserContext(), who.UserID, id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

func (h *Handlers) AcceptBooking(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	booking, err := h.Bookings.Accept(c.UserContext(), who.UserID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

// CompleteBooking serves both the party route and the admin override; the
// caller's role decides which.
func (h *Handlers) CompleteBooking(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	booking, err := h.Bookings.Complete(c.UserContext(), who.UserID, id, who.IsAdmin())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

package handlers

import (
	"time"

	"github.com/anjiri1684/companion_booking/services"
	"github.com/anjiri1684/companion_booking/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PublishSlotRequest struct {
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string          `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      string          `json:"end_time" validate:"required,datetime=15:04|eq=24:00"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
}

func (h *Handlers) PublishSlot(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req PublishSlotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	slot, err := h.Availability.Publish(c.UserContext(), services.SlotInput{
		CompanionID:  who.UserID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		PricePerHour: req.PricePerHour,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

func (h *Handlers) WithdrawSlot(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	slotID, err := paramID(c, "slotId")
	if err != nil {
		return err
	}
	if err := h.Availability.Withdraw(c.UserContext(), who.UserID, slotID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) CompanionSlots(c *fiber.Ctx) error {
	companionID, err := paramID(c, "companionId")
	if err != nil {
		return err
	}
	date := c.Query("date")
	if date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date query parameter is required"})
	}
	slots, err := h.Availability.ListByCompanionDate(c.UserContext(), companionID, date)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slots)
}

func (h *Handlers) SearchSlots(c *fiber.Ctx) error {
	filter := services.SlotFilter{
		Date: c.Query("date"),
		City: c.Query("city"),
		Area: c.Query("area"),
	}
	if raw := c.Query("companion_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid companion_id format"})
		}
		filter.CompanionID = &id
	}

	slots, err := h.Availability.SearchAvailable(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slots)
}

// SlotCandidates lists the start times a seeker may still pick for the
// requested duration.
func (h *Handlers) SlotCandidates(c *fiber.Ctx) error {
	slotID, err := paramID(c, "slotId")
	if err != nil {
		return err
	}
	hours, err := decimal.NewFromString(c.Query("duration_hours", "1"))
	if err != nil || !hours.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_hours must be a positive number"})
	}

	starts, err := h.Availability.Candidates(c.UserContext(), slotID, utils.HoursToDuration(hours))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, s.Format(time.RFC3339))
	}
	return c.JSON(fiber.Map{"slot_id": slotID, "duration_hours": hours, "start_times": out})
}

package handlers

import (
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PayoutRequestBody struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method" validate:"required,oneof=bank_transfer upi mpesa paypal"`
	PaymentDetails string          `json:"payment_details" validate:"required,max=1000"`
}

// RequestPayout honours an Idempotency-Key header; a replayed request answers
// 200 with the original payout instead of 201.
func (h *Handlers) RequestPayout(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req PayoutRequestBody
	if err := parseBody(c, &req); err != nil {
		return err
	}

	payout, replayed, err := h.Payouts.Request(c.UserContext(), services.PayoutRequest{
		CompanionID:    who.UserID,
		Amount:         req.Amount,
		Method:         models.PayoutMethod(req.PaymentMethod),
		Details:        req.PaymentDetails,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return respondError(c, err)
	}
	if replayed {
		c.Set("Idempotent-Replayed", "true")
		return c.JSON(payout)
	}
	return c.Status(fiber.StatusCreated).JSON(payout)
}

func (h *Handlers) MyPayouts(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	return h.listPayouts(c, services.PayoutFilter{CompanionID: &who.UserID})
}

func (h *Handlers) listPayouts(c *fiber.Ctx, filter services.PayoutFilter) error {
	if raw := c.Query("status"); raw != "" {
		status := models.PayoutStatus(raw)
		if !status.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown payout status"})
		}
		filter.Status = status
	}
	payouts, err := h.Payouts.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payouts)
}

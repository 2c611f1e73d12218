package handlers

import (
	"errors"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrForbidden, fiber.StatusForbidden, "forbidden"},
	{services.ErrIdentityNotVerified, fiber.StatusForbidden, "identity_not_verified"},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid_credentials"},
	{services.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input"},
	{services.ErrPastTime, fiber.StatusBadRequest, "past_time"},
	{services.ErrInvalidWindow, fiber.StatusBadRequest, "invalid_window"},
	{services.ErrReasonRequired, fiber.StatusBadRequest, "reason_required"},
	{services.ErrSlotUnavailable, fiber.StatusConflict, "slot_unavailable"},
	{services.ErrConflict, fiber.StatusConflict, "conflict"},
	{services.ErrSlotInUse, fiber.StatusConflict, "slot_in_use"},
	{services.ErrDuplicatePayment, fiber.StatusConflict, "duplicate_payment"},
	{services.ErrIdempotencyConflict, fiber.StatusConflict, "idempotency_conflict"},
	{services.ErrDuplicateSubmission, fiber.StatusConflict, "duplicate_submission"},
	{services.ErrConcurrentUpdate, fiber.StatusConflict, "concurrent_update"},
	{services.ErrEmailTaken, fiber.StatusConflict, "email_taken"},
	{services.ErrBelowMinimum, fiber.StatusUnprocessableEntity, "below_minimum"},
	{services.ErrInsufficientBalance, fiber.StatusUnprocessableEntity, "insufficient_balance"},
	{services.ErrBonusOnlyWithdrawal, fiber.StatusUnprocessableEntity, "bonus_only_withdrawal"},
	{services.ErrRefundExceedsTotal, fiber.StatusUnprocessableEntity, "refund_exceeds_total"},
	{services.ErrPaymentIntent, fiber.StatusBadGateway, "payment_intent_failed"},
}

// respondError maps a service error onto an HTTP status. Anything it does
// not recognise is logged and reported as a 500 without details.
func respondError(c *fiber.Ctx, err error) error {
	var te *services.TransitionError
	if errors.As(err, &te) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":           te.Error(),
			"code":            "invalid_transition",
			"already_applied": te.AlreadyApplied,
		})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(fiber.Map{"error": err.Error(), "code": m.code})
		}
	}

	logger.Log.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

// ErrorHandler renders errors returned from handlers. fiber errors keep their
// status; service errors go through respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return respondError(c, err)
}

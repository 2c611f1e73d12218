package handlers

import (
	"errors"

	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
)

type KcbWebhookPayload struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (p KcbWebhookPayload) receipt() string {
	for _, item := range p.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if val, ok := item.Value.(string); ok {
				return val
			}
		}
	}
	return ""
}

// HandlePaymentWebhook receives the M-Pesa STK callback. CheckoutRequestID is
// the intent id handed out when the booking was created.
func (h *Handlers) HandlePaymentWebhook(c *fiber.Ctx) error {
	var payload KcbWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}
	stk := payload.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing CheckoutRequestID"})
	}

	logger.Log.Info("Received payment webhook",
		"merchant_request_id", stk.MerchantRequestID, "checkout_request_id", stk.CheckoutRequestID, "result_code", stk.ResultCode)

	if stk.ResultCode != 0 {
		_, err := h.Bookings.PaymentFailed(c.UserContext(), stk.CheckoutRequestID)
		if err != nil && !alreadyApplied(err) {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Acknowledged failed payment"})
	}

	reference := payload.receipt()
	if reference == "" {
		reference = stk.CheckoutRequestID
	}
	_, replayed, err := h.Bookings.ConfirmPaymentByIntent(c.UserContext(), stk.CheckoutRequestID, reference)
	if err != nil {
		logger.Log.Error("Error processing payment webhook", "checkout_request_id", stk.CheckoutRequestID, "error", err)
		return respondError(c, err)
	}
	if replayed {
		return c.JSON(fiber.Map{"message": "Webhook already processed"})
	}
	return c.JSON(fiber.Map{"message": "Webhook processed successfully"})
}

type CaptureRequest struct {
	OrderID string `json:"orderID" validate:"required"`
}

func (h *Handlers) CapturePayPalOrder(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if h.PayPal == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "PayPal is not configured"})
	}

	order, err := h.PayPal.CaptureOrder(c.UserContext(), req.OrderID)
	if err != nil {
		logger.Log.Error("PayPal capture failed", "order_id", req.OrderID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to capture PayPal order"})
	}

	switch order.Status {
	case "COMPLETED":
	case "VOIDED", "DECLINED":
		if _, err := h.Bookings.PaymentFailed(c.UserContext(), req.OrderID); err != nil && !alreadyApplied(err) {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment was declined"})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Order not completed on PayPal's end"})
	}

	reference := order.CaptureID()
	if reference == "" {
		reference = order.ID
	}
	booking, replayed, err := h.Bookings.ConfirmPaymentByIntent(c.UserContext(), req.OrderID, reference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"booking": booking, "replayed": replayed})
}

func alreadyApplied(err error) bool {
	var te *services.TransitionError
	return errors.As(err, &te) && te.AlreadyApplied
}

package handlers

import (
	"context"

	config "github.com/anjiri1684/companion_booking/configs"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/anjiri1684/companion_booking/payments"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/anjiri1684/companion_booking/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// OrderCapturer captures an approved PayPal order.
type OrderCapturer interface {
	CaptureOrder(ctx context.Context, orderID string) (*payments.PayPalOrder, error)
}

type Deps struct {
	Settings     config.Settings
	Accounts     *services.AccountService
	Availability *services.AvailabilityService
	Bookings     *services.BookingService
	Ledger       *services.LedgerService
	Credits      *services.CreditService
	Payouts      *services.PayoutService
	Disputes     *services.DisputeService
	PayPal       OrderCapturer
	Hub          *websocket.Hub
}

type Handlers struct {
	Deps
}

func New(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// parseBody decodes and validates a JSON body. Failures come back as
// *fiber.Error for ErrorHandler to render.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name+" format")
	}
	return id, nil
}

func caller(c *fiber.Ctx) (middleware.Identity, error) {
	who, err := middleware.CurrentUser(c)
	if err != nil {
		return who, fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	return who, nil
}

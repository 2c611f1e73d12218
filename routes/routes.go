package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/gofiber/fiber/v2"
)

// Setup registers every route group. Public routes go first: fiber group
// middleware matches by path prefix, so /companions must be claimed before
// the /companion group installs its guards.
func Setup(app *fiber.App, h *handlers.Handlers) {
	AuthRoutes(app, h)
	PublicRoutes(app, h)
	PaymentRoutes(app, h)
	BookingRoutes(app, h)
	CompanionRoutes(app, h)
	WalletRoutes(app, h)
	DisputeRoutes(app, h)
	AdminRoutes(app, h)
	WebsocketRoutes(app, h)
}

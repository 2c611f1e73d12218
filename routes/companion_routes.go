package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func CompanionRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	companion := api.Group("/companion", middleware.Protected(h.Settings.JWTSecret), middleware.CompanionRequired())

	slots := companion.Group("/slots")
	slots.Post("", h.PublishSlot)
	slots.Delete("/:slotId", h.WithdrawSlot)

	bookings := companion.Group("/bookings")
	bookings.Get("", h.CompanionBookings)
	bookings.Post("/:bookingId/accept", h.AcceptBooking)
	bookings.Post("/:bookingId/complete", h.CompleteBooking)

	companion.Get("/wallet/balance", h.WalletBalance)

	payouts := companion.Group("/payouts")
	payouts.Post("", h.RequestPayout)
	payouts.Get("", h.MyPayouts)
}

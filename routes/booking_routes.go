package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(h.Settings.JWTSecret))
	booking.Post("", h.CreateBooking)
	booking.Get("/me", h.MyBookings)
	booking.Get("/:bookingId", h.GetBooking)
	booking.Post("/:bookingId/cancel", h.CancelBooking)
	booking.Post("/:bookingId/disputes", h.RaiseDispute)
}

package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	api.Post("/payments/webhook", h.HandlePaymentWebhook)
	api.Post("/payments/paypal/capture", middleware.Protected(h.Settings.JWTSecret), h.CapturePayPalOrder)
}

package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func WalletRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	wallet := api.Group("/wallet", middleware.Protected(h.Settings.JWTSecret))
	wallet.Get("/balance", h.WalletBalance)
	wallet.Get("/transactions", h.WalletTransactions)
}

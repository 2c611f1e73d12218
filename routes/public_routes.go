package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	api.Get("/companions/:companionId/slots", h.CompanionSlots)
	api.Get("/slots", h.SearchSlots)
	api.Get("/slots/:slotId/candidates", h.SlotCandidates)
}

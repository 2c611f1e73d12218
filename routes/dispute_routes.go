package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func DisputeRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	disputes := api.Group("/disputes", middleware.Protected(h.Settings.JWTSecret))
	disputes.Get("/me", h.MyDisputes)
	disputes.Post("/:disputeId/evidence", h.AddDisputeEvidence)
	disputes.Get("/:disputeId/evidence-signature", h.EvidenceSignature)
}

package routes

import (
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handlers) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(h.Settings.JWTSecret), middleware.AdminRequired())

	payouts := admin.Group("/payouts")
	payouts.Get("", h.AdminListPayouts)
	payouts.Get("/:payoutId", h.AdminGetPayout)
	payouts.Post("/:payoutId/approve", h.ApprovePayout)
	payouts.Post("/:payoutId/processing", h.MarkPayoutProcessing)
	payouts.Post("/:payoutId/reject", h.RejectPayout)
	payouts.Post("/:payoutId/complete", h.CompletePayout)

	disputes := admin.Group("/disputes")
	disputes.Get("", h.AdminListDisputes)
	disputes.Post("/:disputeId/review", h.ReviewDispute)
	disputes.Post("/:disputeId/resolve", h.ResolveDispute)
	disputes.Post("/:disputeId/close", h.CloseDispute)

	admin.Get("/bookings", h.AdminListBookings)
	admin.Post("/bookings/:bookingId/complete", h.CompleteBooking)

	admin.Post("/wallet/campaign-bonus", h.GrantCampaignBonus)
	admin.Put("/users/:userId/verification", h.SetVerificationStatus)
}

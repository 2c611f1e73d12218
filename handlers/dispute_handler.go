package handlers

import (
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
)

type RaiseDisputeRequest struct {
	Reason       string   `json:"reason" validate:"required,max=2000"`
	EvidenceURLs []string `json:"evidence_urls" validate:"omitempty,max=10,dive,url"`
}

type AddEvidenceRequest struct {
	EvidenceURLs []string `json:"evidence_urls" validate:"required,min=1,max=10,dive,url"`
}

func (h *Handlers) RaiseDispute(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	bookingID, err := paramID(c, "bookingId")
	if err != nil {
		return err
	}
	var req RaiseDisputeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	dispute, err := h.Disputes.Raise(c.UserContext(), services.RaiseDisputeInput{
		BookingID:    bookingID,
		RaisedBy:     who.UserID,
		Reason:       req.Reason,
		EvidenceURLs: req.EvidenceURLs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dispute)
}

func (h *Handlers) AddDisputeEvidence(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	disputeID, err := paramID(c, "disputeId")
	if err != nil {
		return err
	}
	var req AddEvidenceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	dispute, err := h.Disputes.AddEvidence(c.UserContext(), who.UserID, disputeID, req.EvidenceURLs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dispute)
}

func (h *Handlers) MyDisputes(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	disputes, err := h.Disputes.ListForUser(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(disputes)
}

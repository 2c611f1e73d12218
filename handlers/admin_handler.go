package handlers

import (
	"github.com/anjiri1684/companion_booking/models"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferRequest struct {
	TransferReference string `json:"transfer_reference" validate:"max=255"`
}

type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type ResolveDisputeRequest struct {
	Outcome      string          `json:"outcome" validate:"omitempty,oneof=release_to_companion partial_refund full_refund"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Notes        string          `json:"notes" validate:"max=2000"`
}

type CloseDisputeRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type CampaignBonusRequest struct {
	UserID   string          `json:"user_id" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Campaign string          `json:"campaign" validate:"required,max=100"`
}

type VerificationRequest struct {
	Status string `json:"status" validate:"required,oneof=verified pending rejected skipped"`
}

func (h *Handlers) AdminListPayouts(c *fiber.Ctx) error {
	return h.listPayouts(c, services.PayoutFilter{})
}

func (h *Handlers) AdminGetPayout(c *fiber.Ctx) error {
	id, err := paramID(c, "payoutId")
	if err != nil {
		return err
	}
	payout, err := h.Payouts.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

func (h *Handlers) ApprovePayout(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "payoutId")
	if err != nil {
		return err
	}
	payout, err := h.Payouts.Approve(c.UserContext(), admin, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

func (h *Handlers) MarkPayoutProcessing(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "payoutId")
	if err != nil {
		return err
	}
	var req TransferRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	payout, err := h.Payouts.MarkProcessing(c.UserContext(), admin, id, req.TransferReference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

func (h *Handlers) RejectPayout(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "payoutId")
	if err != nil {
		return err
	}
	var req RejectPayoutRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payout, err := h.Payouts.Reject(c.UserContext(), admin, id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

func (h *Handlers) CompletePayout(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "payoutId")
	if err != nil {
		return err
	}
	var req TransferRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	payout, err := h.Payouts.Complete(c.UserContext(), admin, id, req.TransferReference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(payout)
}

func (h *Handlers) AdminListDisputes(c *fiber.Ctx) error {
	disputes, err := h.Disputes.ListByStatus(c.UserContext(), models.DisputeStatus(c.Query("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(disputes)
}

func (h *Handlers) ReviewDispute(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "disputeId")
	if err != nil {
		return err
	}
	dispute, err := h.Disputes.Review(c.UserContext(), admin, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dispute)
}

func (h *Handlers) ResolveDispute(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "disputeId")
	if err != nil {
		return err
	}
	var req ResolveDisputeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dispute, err := h.Disputes.Resolve(c.UserContext(), services.ResolveDisputeInput{
		DisputeID:    id,
		AdminID:      admin,
		Outcome:      models.DisputeOutcome(req.Outcome),
		RefundAmount: req.RefundAmount,
		Notes:        req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dispute)
}

func (h *Handlers) CloseDispute(c *fiber.Ctx) error {
	admin, id, err := adminAndID(c, "disputeId")
	if err != nil {
		return err
	}
	var req CloseDisputeRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	dispute, err := h.Disputes.Close(c.UserContext(), admin, id, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dispute)
}

func (h *Handlers) GrantCampaignBonus(c *fiber.Ctx) error {
	var req CampaignBonusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entry, err := h.Credits.GrantCampaignBonus(c.UserContext(), uuid.MustParse(req.UserID), req.Amount, req.Campaign)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *Handlers) SetVerificationStatus(c *fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	var req VerificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.Accounts.SetVerificationStatus(c.UserContext(), userID.String(), models.VerificationStatus(req.Status)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user_id": userID, "verification_status": req.Status})
}

func adminAndID(c *fiber.Ctx, param string) (uuid.UUID, uuid.UUID, error) {
	who, err := caller(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := paramID(c, param)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return who.UserID, id, nil
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handlers) WalletBalance(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	snap, err := h.Ledger.Snapshot(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"available_balance": snap.Available,
		"breakdown":         snap,
	})
}

func (h *Handlers) WalletTransactions(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	entries, err := h.Credits.ListTransactions(c.UserContext(), who.UserID, c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/ports"
)

type WalletHandler struct {
	service ports.WalletService
	log     *zap.Logger
}

func NewWalletHandler(service ports.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{
		service: service,
		log:     log,
	}
}

type TopUpRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	ReferenceID string  `json:"reference_id"`
}

func (h *WalletHandler) Get(c *fiber.Ctx) error {
	w, err := h.service.GetOrCreateWallet(c.Context(), c.Params("customerId"))
	if err != nil {
		return err
	}
	return c.JSON(w)
}

func (h *WalletHandler) TopUp(c *fiber.Ctx) error {
	var req TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	description := req.Description
	if description == "" {
		description = "wallet top-up"
	}

	entry, err := h.service.Credit(c.Context(), c.Params("customerId"), req.Amount, description, req.ReferenceID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *WalletHandler) Transactions(c *fiber.Ctx) error {
	entries, err := h.service.Transactions(c.Context(), c.Params("customerId"),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": entries, "count": len(entries)})
}

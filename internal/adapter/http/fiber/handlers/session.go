package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

type SessionHandler struct {
	service ports.SessionService
	log     *zap.Logger
}

func NewSessionHandler(service ports.SessionService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log,
	}
}

type StartSessionRequest struct {
	CustomerID      string  `json:"customer_id"`
	DeviceID        string  `json:"device_id"`
	ConnectorID     int     `json:"connector_id"`
	Amount          float64 `json:"amount"`
	ChargingPointID string  `json:"charging_point_id"`
	VehicleID       string  `json:"vehicle_id"`
	IdTag           string  `json:"id_tag"` // Optional
}

type StopSessionRequest struct {
	CustomerID    string `json:"customer_id"`
	DeviceID      string `json:"device_id"`
	ConnectorID   *int   `json:"connector_id"`
	TransactionID *int   `json:"transaction_id"`
	SessionID     string `json:"session_id"`
}

func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.CustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer_id is required"})
	}

	result, err := h.service.Start(c.Context(), ports.StartRequest{
		CustomerID:      req.CustomerID,
		DeviceID:        req.DeviceID,
		ConnectorID:     req.ConnectorID,
		Amount:          req.Amount,
		ChargingPointID: req.ChargingPointID,
		VehicleID:       req.VehicleID,
		IdTag:           req.IdTag,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	var req StopSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	if req.CustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer_id is required"})
	}

	result, err := h.service.Stop(c.Context(), ports.StopRequest{
		CustomerID:    req.CustomerID,
		DeviceID:      req.DeviceID,
		ConnectorID:   req.ConnectorID,
		TransactionID: req.TransactionID,
		SessionID:     req.SessionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// OperatorStart initiates a console session billed against the reserved
// system account.
func (h *SessionHandler) OperatorStart(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	result, err := h.service.Start(c.Context(), ports.StartRequest{
		DeviceID:        req.DeviceID,
		ConnectorID:     req.ConnectorID,
		ChargingPointID: req.ChargingPointID,
		IdTag:           req.IdTag,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SessionHandler) OperatorStop(c *fiber.Ctx) error {
	var req StopSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	result, err := h.service.Stop(c.Context(), ports.StopRequest{
		DeviceID:      req.DeviceID,
		ConnectorID:   req.ConnectorID,
		TransactionID: req.TransactionID,
		SessionID:     req.SessionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (h *SessionHandler) List(c *fiber.Ctx) error {
	filter := ports.SessionFilter{
		CustomerID: c.Query("customer_id"),
		DeviceID:   c.Query("device_id"),
		Status:     domain.SessionStatus(c.Query("status")),
		Limit:      c.QueryInt("limit", 50),
		Offset:     c.QueryInt("offset", 0),
	}

	sessions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}

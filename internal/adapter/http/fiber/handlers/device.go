package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/ports"
)

type DeviceHandler struct {
	service ports.DeviceStateService
	log     *zap.Logger
}

func NewDeviceHandler(service ports.DeviceStateService, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		log:     log,
	}
}

func (h *DeviceHandler) Status(c *fiber.Ctx) error {
	deviceID := c.Params("deviceId")
	status, err := h.service.Status(c.Context(), deviceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device_id": deviceID,
		"status":    status,
	})
}

func (h *DeviceHandler) ConnectorStatus(c *fiber.Ctx) error {
	deviceID := c.Params("deviceId")
	status, err := h.service.ConnectorStatus(c.Context(), deviceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device_id":        deviceID,
		"connector_status": status,
	})
}

func (h *DeviceHandler) ActiveTransaction(c *fiber.Ctx) error {
	deviceID := c.Params("deviceId")
	active, err := h.service.HasActiveTransaction(c.Context(), deviceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device_id":              deviceID,
		"has_active_transaction": active,
	})
}

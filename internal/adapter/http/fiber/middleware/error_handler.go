package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
)

// ErrorHandler maps the domain error taxonomy onto HTTP status codes so
// handlers can return service errors as-is.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		switch {
		case errors.Is(err, domain.ErrValidation):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrInsufficientFunds):
			code = fiber.StatusPaymentRequired
		case errors.Is(err, domain.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, domain.ErrConflict):
			code = fiber.StatusConflict
		case errors.Is(err, domain.ErrResolution):
			code = fiber.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrUpstreamUnavailable):
			code = fiber.StatusBadGateway
		default:
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

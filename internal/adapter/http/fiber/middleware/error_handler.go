package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/internal/domain"
)

// StatusFor maps an error from the service layer to an HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ioErr *domain.IOError
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation), errors.As(err, &ioErr):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNoModel), errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrDetectionInProgress):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficientData):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrServiceUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusFor(err)
		message := err.Error()

		switch {
		case code == fiber.StatusInternalServerError:
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
			message = "internal server error"
		case code == fiber.StatusBadGateway:
			log.Warn("Upstream failure", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

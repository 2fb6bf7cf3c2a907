// Package response writes the JSON bodies shared by handlers and middleware.
package response

import (
	"errors"
	"log/slog"

	apperrors "ledgerpay/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, body fiber.Map) error {
	return c.Status(fiber.StatusCreated).JSON(body)
}

func Error(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, apperrors.ErrValidation.Code, message)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(c *fiber.Ctx) error {
	return Error(c, fiber.StatusForbidden, "FORBIDDEN", "insufficient permissions")
}

// Status maps a domain error kind to its HTTP status.
func Status(de *apperrors.DomainError) int {
	switch de.Kind {
	case apperrors.KindValidation, apperrors.KindInsufficientFunds,
		apperrors.KindLimitExceeded, apperrors.KindBalanceCapExceeded, apperrors.KindConflict:
		return fiber.StatusBadRequest
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.KindGateway:
		if errors.Is(de, apperrors.ErrGatewayRejected) {
			return fiber.StatusBadRequest
		}
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// FromError writes err as an error body. Domain errors keep their message and code;
// anything else is logged and reported as a generic 500.
func FromError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	de, ok := apperrors.As(err)
	if !ok {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return Error(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	body := fiber.Map{"error": de.Message, "code": de.Code}
	if de.Details != nil {
		if de.Kind == apperrors.KindGateway {
			body["upstream"] = de.Details
		} else {
			body["details"] = de.Details
		}
	}
	return c.Status(Status(de)).JSON(body)
}

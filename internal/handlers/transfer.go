package handlers

import (
	"context"
	"log/slog"

	"ledgerpay/internal/middleware"
	"ledgerpay/internal/services/transfer"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type TransferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*transfer.Result, error)
	AuthorizeTransfer(ctx context.Context, userID uint, reference, otp string) (*transfer.AuthorizationResult, error)
}

// TransferHandler exposes wallet-to-wallet and bank transfer endpoints.
type TransferHandler struct {
	service TransferService
	logger  *slog.Logger
}

func NewTransferHandler(s TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{service: s, logger: logger}
}

// Transfer handles POST /transfer.
func (h *TransferHandler) Transfer(c *fiber.Ctx) error {
	var req transfer.Request
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	req.SenderID = middleware.UserID(c)

	res, err := h.service.Transfer(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	if res.Status == transfer.StatusPendingAuthorization {
		return response.Created(c, fiber.Map{
			"message":               res.Message,
			"transaction_reference": res.Reference,
			"status":                res.Status,
		})
	}
	return response.Created(c, fiber.Map{
		"message":   res.Message,
		"reference": res.Reference,
		"status":    res.Status,
	})
}

// VerifyOTP handles POST /otp/verify/:reference.
func (h *TransferHandler) VerifyOTP(c *fiber.Ctx) error {
	var body struct {
		OTP string `json:"otp"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	res, err := h.service.AuthorizeTransfer(c.UserContext(), middleware.UserID(c), c.Params("reference"), body.OTP)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "transfer authorized", res)
}

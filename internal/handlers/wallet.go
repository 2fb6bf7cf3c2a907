package handlers

import (
	"context"
	"log/slog"

	"ledgerpay/internal/middleware"
	"ledgerpay/internal/services/funding"
	"ledgerpay/internal/services/wallet"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type WalletService interface {
	Get(ctx context.Context, userID uint) (*wallet.View, error)
}

type FundingService interface {
	Initiate(ctx context.Context, userID uint, amount decimal.Decimal) (*funding.Result, error)
}

type WalletHandler struct {
	wallets WalletService
	funding FundingService
	logger  *slog.Logger
}

func NewWalletHandler(w WalletService, f FundingService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: w, funding: f, logger: logger}
}

// Get handles GET /wallet.
func (h *WalletHandler) Get(c *fiber.Ctx) error {
	view, err := h.wallets.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "wallet retrieved", view)
}

// Fund handles POST /fund/wallet. The wallet is credited when the funding webhook
// arrives, not here.
func (h *WalletHandler) Fund(c *fiber.Ctx) error {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	res, err := h.funding.Initiate(c.UserContext(), middleware.UserID(c), body.Amount)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "funding initiated",
		"data":    res,
	})
}

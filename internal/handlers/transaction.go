package handlers

import (
	"context"
	"log/slog"

	"ledgerpay/internal/middleware"
	"ledgerpay/internal/models"
	"ledgerpay/internal/utils/pagination"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type LedgerService interface {
	List(ctx context.Context, ownerID uint, limit, offset int) ([]models.Transaction, int64, error)
	Get(ctx context.Context, ownerID uint, reference string) (*models.Transaction, error)
}

type TransactionHandler struct {
	service LedgerService
	logger  *slog.Logger
}

func NewTransactionHandler(s LedgerService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{service: s, logger: logger}
}

// List handles GET /transactions, newest first.
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	items, total, err := h.service.List(c.UserContext(), middleware.UserID(c), p.Limit, p.Offset)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, items))
}

// Get handles GET /transactions/:reference.
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	entry, err := h.service.Get(c.UserContext(), middleware.UserID(c), c.Params("reference"))
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "transaction retrieved", entry)
}

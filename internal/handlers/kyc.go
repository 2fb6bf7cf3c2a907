package handlers

import (
	"context"
	"log/slog"
	"strings"

	"ledgerpay/internal/middleware"
	"ledgerpay/internal/models"
	"ledgerpay/internal/services/tier"
	"ledgerpay/internal/utils/pagination"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type UpgradeService interface {
	Submit(ctx context.Context, userID uint, sub tier.Submission) (*models.TierUpgradeRequest, error)
	Review(ctx context.Context, reviewerID, requestID uint, action tier.ReviewAction, reason string) (*models.TierUpgradeRequest, error)
	List(ctx context.Context, status models.UpgradeStatus, limit, offset int) ([]models.TierUpgradeRequest, int64, error)
	Latest(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error)
}

// KYCHandler serves the user side of tier upgrades.
type KYCHandler struct {
	service UpgradeService
	logger  *slog.Logger
}

func NewKYCHandler(s UpgradeService, logger *slog.Logger) *KYCHandler {
	return &KYCHandler{service: s, logger: logger}
}

// SubmitUpgrade handles POST /kyc/upgrade/tier.
func (h *KYCHandler) SubmitUpgrade(c *fiber.Ctx) error {
	var sub tier.Submission
	if err := c.BodyParser(&sub); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	req, err := h.service.Submit(c.UserContext(), middleware.UserID(c), sub)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "upgrade request submitted",
		"data":    req,
	})
}

// Status handles GET /kyc/upgrade/tier.
func (h *KYCHandler) Status(c *fiber.Ctx) error {
	req, err := h.service.Latest(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "upgrade request status", req)
}

// AdminHandler serves the reviewer side of tier upgrades.
type AdminHandler struct {
	service UpgradeService
	logger  *slog.Logger
}

func NewAdminHandler(s UpgradeService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: s, logger: logger}
}

// ReviewUpgrade handles PATCH /admin/upgrade/:id/review.
func (h *AdminHandler) ReviewUpgrade(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "invalid upgrade request id")
	}
	var body struct {
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	action := tier.ReviewAction(strings.ToLower(strings.TrimSpace(body.Action)))
	req, err := h.service.Review(c.UserContext(), middleware.UserID(c), uint(id), action, body.Reason)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "upgrade request "+string(req.Status), req)
}

// ListUpgrades handles GET /admin/upgrade/requests?status=pending.
func (h *AdminHandler) ListUpgrades(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)
	status := models.UpgradeStatus(strings.ToLower(c.Query("status")))
	items, total, err := h.service.List(c.UserContext(), status, p.Limit, p.Offset)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, items))
}

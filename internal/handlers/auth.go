package handlers

import (
	"context"
	"log/slog"

	"ledgerpay/internal/services/auth"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
}

type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(s AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: s, logger: logger}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in auth.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	sess, err := h.service.Register(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	message := "registration successful"
	if sess.AccountPending {
		message = "registration successful, funding account is being set up"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"data":    sess,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in auth.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	sess, err := h.service.Login(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, "login successful", sess)
}

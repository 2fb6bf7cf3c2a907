// Package middleware provides the fiber middleware for authentication,
// authorization, webhook signatures and per-user rate limiting.
package middleware

import (
	"context"
	"log/slog"
	"strings"

	"ledgerpay/internal/models"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

const (
	localClaims = "claims"
	localUserID = "userID"
)

type TokenParser interface {
	Parse(token string) (*models.UserClaims, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// AuthMiddleware handles JWT token validation and user authentication.
type AuthMiddleware struct {
	tokens TokenParser
	users  UserLookup
	logger *slog.Logger
}

func NewAuthMiddleware(tokens TokenParser, users UserLookup, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Handler validates the bearer token, checks that its user still exists, and stores
// the claims in the request context.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return response.Unauthorized(c, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return response.Unauthorized(c, "invalid authorization format")
	}

	claims, err := m.tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		m.logger.Debug("token validation failed", "error", err)
		return response.Unauthorized(c, "invalid token")
	}

	user, err := m.users.GetUserByID(c.UserContext(), claims.UserID)
	if err != nil {
		m.logger.Warn("token user not found", "user_id", claims.UserID)
		return response.Unauthorized(c, "invalid token")
	}
	// Role changes take effect without waiting for the token to expire.
	if user.Role != claims.Role {
		claims.Role = user.Role
		claims.Permissions = models.GetDefaultPermissions(user.Role)
	}

	c.Locals(localClaims, claims)
	c.Locals(localUserID, claims.UserID)
	return c.Next()
}

// Claims returns the claims stored by AuthMiddleware, or nil.
func Claims(c *fiber.Ctx) *models.UserClaims {
	claims, _ := c.Locals(localClaims).(*models.UserClaims)
	return claims
}

// UserID returns the authenticated user's id, or 0.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}

// AdminOnly rejects requests whose claims are not an admin's.
func AdminOnly(c *fiber.Ctx) error {
	claims := Claims(c)
	if claims == nil {
		return response.Unauthorized(c, "unauthorized")
	}
	if claims.Role != models.RoleAdmin {
		return response.Forbidden(c)
	}
	return c.Next()
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return response.Unauthorized(c, "unauthorized")
		}
		if claims.HasPermission(permission) {
			return c.Next()
		}
		return response.Forbidden(c)
	}
}

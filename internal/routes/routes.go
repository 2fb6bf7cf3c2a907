// Package routes mounts the HTTP surface on a fiber app.
package routes

import (
	"log/slog"
	"net/http"
	"time"

	"ledgerpay/internal/handlers"
	"ledgerpay/internal/middleware"
	"ledgerpay/internal/models"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Wallet      *handlers.WalletHandler
	Transfer    *handlers.TransferHandler
	Transaction *handlers.TransactionHandler
	KYC         *handlers.KYCHandler
	Admin       *handlers.AdminHandler
	Webhook     *handlers.WebhookHandler
	Health      *handlers.HealthHandler
	Metrics     http.Handler
}

type Options struct {
	Auth          *middleware.AuthMiddleware
	WebhookSecret string
	// RateLimiter backs the per-user transfer limit; nil disables it.
	RateLimiter        middleware.RateLimiter
	TransferRateLimit  int
	TransferRateWindow time.Duration
	// AuthAttempts caps register and login calls per IP per minute.
	AuthAttempts int
	Logger       *slog.Logger
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	if opts.AuthAttempts <= 0 {
		opts.AuthAttempts = 5
	}

	app.Get("/health", h.Health.Check)
	if h.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(h.Metrics))
	}

	authLimit := limiter.New(limiter.Config{
		Max:        opts.AuthAttempts,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please try again later")
		},
	})
	authGroup := app.Group("/auth", authLimit)
	authGroup.Post("/register", h.Auth.Register)
	authGroup.Post("/login", h.Auth.Login)

	// Gateway callbacks authenticate by signature, not by user token.
	verify := middleware.VerifySignature(opts.WebhookSecret, opts.Logger)
	app.Post("/fund/webhook", verify, h.Webhook.Funding)
	app.Post("/transfer/webhook", verify, h.Webhook.Disbursement)

	authed := opts.Auth.Handler
	transferLimit := middleware.PerUserRateLimit(opts.RateLimiter, "transfer", opts.TransferRateLimit, opts.TransferRateWindow, opts.Logger)

	app.Get("/wallet", authed, middleware.HasPermission(models.PermissionWalletRead), h.Wallet.Get)
	app.Post("/fund/wallet", authed, middleware.HasPermission(models.PermissionWalletWrite), h.Wallet.Fund)

	app.Post("/transfer", authed, middleware.HasPermission(models.PermissionTransactionWrite), transferLimit, h.Transfer.Transfer)
	app.Post("/otp/verify/:reference", authed, middleware.HasPermission(models.PermissionTransactionWrite), h.Transfer.VerifyOTP)

	app.Get("/transactions", authed, middleware.HasPermission(models.PermissionTransactionRead), h.Transaction.List)
	app.Get("/transactions/:reference", authed, middleware.HasPermission(models.PermissionTransactionRead), h.Transaction.Get)

	app.Post("/kyc/upgrade/tier", authed, middleware.HasPermission(models.PermissionUpgradeSubmit), h.KYC.SubmitUpgrade)
	app.Get("/kyc/upgrade/tier", authed, middleware.HasPermission(models.PermissionUpgradeSubmit), h.KYC.Status)

	admin := app.Group("/admin", authed, middleware.AdminOnly)
	admin.Patch("/upgrade/:id/review", middleware.HasPermission(models.PermissionUpgradeReview), h.Admin.ReviewUpgrade)
	admin.Get("/upgrade/requests", middleware.HasPermission(models.PermissionReadAdmin), h.Admin.ListUpgrades)
}

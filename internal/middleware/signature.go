package middleware

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"strings"

	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries hex(HMAC-SHA512(secret, raw body)) on gateway callbacks.
const SignatureHeader = "monnify-signature"

// Sign computes the signature the gateway sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature rejects webhook deliveries whose signature does not match the raw
// body. An empty secret rejects everything.
func VerifySignature(secret string, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		got := strings.ToLower(strings.TrimSpace(c.Get(SignatureHeader)))
		if secret == "" || got == "" {
			logger.Warn("webhook rejected: missing signature", "path", c.Path())
			return response.Error(c, fiber.StatusBadRequest, "INVALID_SIGNATURE", "invalid signature")
		}
		want := Sign(secret, c.Body())
		if !hmac.Equal([]byte(got), []byte(want)) {
			logger.Warn("webhook rejected: signature mismatch", "path", c.Path(), "ip", c.IP())
			return response.Error(c, fiber.StatusBadRequest, "INVALID_SIGNATURE", "invalid signature")
		}
		return c.Next()
	}
}

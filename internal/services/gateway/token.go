package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ledgerpay/internal/repositories/cache"
)

// Token is a bearer token together with the instant it stops being accepted.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used at now, keeping skew in reserve.
func (t Token) Valid(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Add(skew).Before(t.ExpiresAt)
}

// TokenCache stores the gateway access token between requests.
type TokenCache interface {
	Get(ctx context.Context) (Token, bool)
	Set(ctx context.Context, token Token)
	Invalidate(ctx context.Context)
}

// MemoryTokenCache keeps the token in process.
type MemoryTokenCache struct {
	mu    sync.Mutex
	token Token
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{}
}

func (c *MemoryTokenCache) Get(context.Context) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token.Value != ""
}

func (c *MemoryTokenCache) Set(_ context.Context, token Token) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *MemoryTokenCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.token = Token{}
	c.mu.Unlock()
}

var tokenKey = cache.Key("gateway", "token", "access")

// SharedTokenCache keeps the token in a shared cache so every server instance reuses it.
// Cache failures degrade to a fresh login.
type SharedTokenCache struct {
	store  cache.Cache
	logger *slog.Logger
}

func NewSharedTokenCache(store cache.Cache, logger *slog.Logger) *SharedTokenCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SharedTokenCache{store: store, logger: logger}
}

func (c *SharedTokenCache) Get(ctx context.Context) (Token, bool) {
	var t Token
	found, err := c.store.Get(ctx, tokenKey, &t)
	if err != nil {
		c.logger.Warn("failed to read cached gateway token", "error", err)
		return Token{}, false
	}
	if !found {
		return Token{}, false
	}
	return t, true
}

func (c *SharedTokenCache) Set(ctx context.Context, token Token) {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, tokenKey, token, ttl); err != nil {
		c.logger.Warn("failed to cache gateway token", "error", err)
	}
}

func (c *SharedTokenCache) Invalidate(ctx context.Context) {
	if err := c.store.Delete(ctx, tokenKey); err != nil {
		c.logger.Warn("failed to invalidate cached gateway token", "error", err)
	}
}

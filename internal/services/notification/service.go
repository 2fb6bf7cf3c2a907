// Package notification sends user-facing messages through the event bus.
package notification

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	Exchange   = "notifications"
	RoutingKey = "notify.email"
)

// Notifier delivers a message to an address. Delivery is fire-and-forget: failures
// are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, address, message string)
}

// Publisher is the subset of the event producer the service needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Message is the payload consumed by the mail/SMS worker.
type Message struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Service struct {
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration
}

var _ Notifier = (*Service)(nil)

func NewService(publisher Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		panic("publisher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{publisher: publisher, logger: logger, timeout: 5 * time.Second}
}

func (s *Service) Notify(ctx context.Context, address, message string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return
	}
	// The request context may already be done once the response is written.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	msg := Message{Address: address, Message: message, Timestamp: time.Now().UTC()}
	if err := s.publisher.Publish(pubCtx, Exchange, RoutingKey, msg); err != nil {
		s.logger.Warn("notification publish failed", "address", address, "error", err)
	}
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) {}

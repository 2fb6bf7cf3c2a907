package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"ledgerpay/internal/services/webhook"
	"ledgerpay/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Reconciler interface {
	HandleFundingEvent(ctx context.Context, ev webhook.FundingEvent) (webhook.Ack, error)
	HandleDisbursementEvent(ctx context.Context, ev webhook.DisbursementEvent) (webhook.Ack, error)
}

// WebhookHandler receives gateway callbacks. Signatures are checked by middleware
// before these handlers run.
type WebhookHandler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(r Reconciler, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{reconciler: r, logger: logger}
}

type callback struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

type fundingData struct {
	PaymentReference     string          `json:"paymentReference"`
	TransactionReference string          `json:"transactionReference"`
	AmountPaid           decimal.Decimal `json:"amountPaid"`
	PaymentStatus        string          `json:"paymentStatus"`
}

type disbursementData struct {
	Reference              string          `json:"reference"`
	Status                 string          `json:"status"`
	Fee                    decimal.Decimal `json:"fee"`
	TransactionDescription string          `json:"transactionDescription"`
}

func parseCallback(body []byte, data interface{}) (string, error) {
	var cb callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", err
	}
	if len(cb.EventData) > 0 && string(cb.EventData) != "null" {
		if err := json.Unmarshal(cb.EventData, data); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(cb.EventType), nil
}

// Funding handles POST /fund/webhook.
func (h *WebhookHandler) Funding(c *fiber.Ctx) error {
	var data fundingData
	eventType, err := parseCallback(c.Body(), &data)
	if err != nil {
		h.logger.Warn("malformed funding webhook", "error", err)
		return response.BadRequest(c, "malformed webhook payload")
	}

	ack, err := h.reconciler.HandleFundingEvent(c.UserContext(), webhook.FundingEvent{
		PaymentReference:     data.PaymentReference,
		TransactionReference: data.TransactionReference,
		EventType:            eventType,
		AmountPaid:           data.AmountPaid,
		PaymentStatus:        data.PaymentStatus,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return c.JSON(ack)
}

// Disbursement handles POST /transfer/webhook.
func (h *WebhookHandler) Disbursement(c *fiber.Ctx) error {
	var data disbursementData
	eventType, err := parseCallback(c.Body(), &data)
	if err != nil {
		h.logger.Warn("malformed disbursement webhook", "error", err)
		return response.BadRequest(c, "malformed webhook payload")
	}

	ack, err := h.reconciler.HandleDisbursementEvent(c.UserContext(), webhook.DisbursementEvent{
		Reference: data.Reference,
		EventType: eventType,
		Status:    data.Status,
		Fee:       data.Fee,
		Reason:    data.TransactionDescription,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return c.JSON(ack)
}

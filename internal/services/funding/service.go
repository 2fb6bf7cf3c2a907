// Package funding starts wallet top-ups through the gateway checkout. The wallet is
// only credited later, when the funding webhook confirms payment.
package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/ledger"
	"ledgerpay/internal/services/limits"
	"ledgerpay/internal/services/tier"

	"github.com/shopspring/decimal"
)

type Gateway interface {
	InitPayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentResponse, error)
}

type Result struct {
	Reference   string          `json:"reference"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
}

type Service struct {
	store   repositories.Store
	gateway Gateway
	tracker *limits.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store repositories.Store, gw Gateway, tracker *limits.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = limits.NewTracker(time.UTC, nil)
	}
	return &Service{store: store, gateway: gw, tracker: tracker, logger: logger, now: time.Now}
}

// Initiate records a pending Deposit and returns the checkout link for it. Requests
// that could not be credited under the wallet's tier are refused up front.
func (s *Service) Initiate(ctx context.Context, userID uint, amount decimal.Decimal) (*Result, error) {
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount.WithMessage("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, apperrors.ErrInvalidAmount.WithMessage("amount cannot have more than two decimal places")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, err
	}
	wallet, err := s.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, err
	}
	rules, err := tier.Lookup(wallet.Tier)
	if err != nil {
		return nil, err
	}
	counters, err := s.tracker.Snapshot(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if counters.DailyInflow.Add(amount).GreaterThan(rules.DailyInflowCap) {
		return nil, apperrors.ErrLimitExceeded.WithMessage("daily inflow limit of %s exceeded", rules.DailyInflowCap.StringFixed(2))
	}
	if wallet.Balance.Add(amount).GreaterThan(rules.MaxBalance) {
		return nil, apperrors.ErrBalanceCapExceeded.WithMessage("wallet balance limit of %s exceeded", rules.MaxBalance.StringFixed(2))
	}

	reference := ledger.NewFundingReference(userID)
	entry := &models.Transaction{
		Reference:     reference,
		OwnerID:       userID,
		SenderName:    user.FullName(),
		RecipientName: user.FullName(),
		Amount:        amount,
		Fee:           decimal.Zero,
		Type:          models.TransactionTypeDeposit,
		Status:        models.StatusPending,
		Description:   "Wallet funding",
		CreatedAt:     s.now().UTC(),
	}
	if wallet.AccountNumber != nil {
		entry.RecipientAccount = *wallet.AccountNumber
	}
	if wallet.BankName != nil {
		entry.RecipientBank = *wallet.BankName
	}
	if err := s.store.CreateTransactions(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record funding: %w", err)
	}

	resp, err := s.gateway.InitPayment(ctx, gateway.PaymentRequest{
		Amount:             amount,
		CustomerName:       user.FullName(),
		CustomerEmail:      user.Email,
		PaymentReference:   reference,
		PaymentDescription: "Wallet funding",
	})
	if err != nil {
		s.abandon(ctx, reference, err)
		var ge *gateway.GatewayError
		if errors.As(err, &ge) {
			base := apperrors.ErrGateway
			if ge.Rejected() {
				base = apperrors.ErrGatewayRejected
			}
			return nil, base.WithMessage("%s", ge.Message).WithDetails(ge.Body)
		}
		return nil, apperrors.ErrGateway.WithMessage("payment gateway unavailable: %v", err)
	}

	s.logger.Info("funding initiated", "reference", reference, "user_id", userID, "amount", amount.StringFixed(2))
	return &Result{Reference: reference, CheckoutURL: resp.CheckoutURL, Amount: amount}, nil
}

// abandon fails a Deposit whose checkout could not be created, so no webhook can
// settle it later.
func (s *Service) abandon(ctx context.Context, reference string, cause error) {
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		entry, err := tx.LockTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if entry.IsTerminal() {
			return nil
		}
		if err := entry.Transition(models.StatusFailed, s.now().UTC()); err != nil {
			return err
		}
		entry.SetMeta("failure_reason", cause.Error())
		return tx.SaveTransaction(ctx, entry)
	})
	if err != nil {
		s.logger.Error("failed to mark funding abandoned", "reference", reference, "error", err)
	}
}

// Package onboarding runs the steps that follow a new user: the wallet and limit
// tracker, then the gateway reserved account the wallet is funded through.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/limits"
)

type Gateway interface {
	CreateReservedAccount(ctx context.Context, req gateway.ReservedAccountRequest) (*gateway.ReservedAccountResponse, error)
}

// Result is what registration reports back. AccountPending is set when the reserved
// account could not be created yet; the sweep keeps retrying it.
type Result struct {
	User           *models.User   `json:"user"`
	Wallet         *models.Wallet `json:"wallet"`
	AccountPending bool           `json:"account_pending"`
}

type Service struct {
	store   repositories.Store
	gateway Gateway
	tracker *limits.Tracker
	logger  *slog.Logger
}

func NewService(store repositories.Store, gw Gateway, tracker *limits.Tracker, logger *slog.Logger) *Service {
	if tracker == nil {
		tracker = limits.NewTracker(time.UTC, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gateway: gw, tracker: tracker, logger: logger}
}

// Register stores user together with an empty tier1 wallet and today's tracker, then
// asks the gateway for a reserved account. A gateway failure does not undo the
// registration.
func (s *Service) Register(ctx context.Context, user *models.User) (*Result, error) {
	wallet := &models.Wallet{Tier: models.Tier1}
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		wallet.UserID = user.ID
		if err := tx.CreateWallet(ctx, wallet); err != nil {
			return fmt.Errorf("failed to create wallet: %w", err)
		}
		if _, err := tx.LockLimitTracker(ctx, user.ID, s.tracker.Today()); err != nil {
			return fmt.Errorf("failed to create limit tracker: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{User: user, Wallet: wallet}
	provisioned, err := s.EnsureReservedAccount(ctx, user.ID)
	if err != nil {
		s.logger.Warn("reserved account provisioning deferred", "user_id", user.ID, "error", err)
		res.AccountPending = true
		return res, nil
	}
	res.Wallet = provisioned
	return res, nil
}

// AccountReference is the gateway reference a user's reserved account is created under.
func AccountReference(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// EnsureReservedAccount binds a reserved account to the user's wallet unless one is
// already bound. Safe to call repeatedly.
func (s *Service) EnsureReservedAccount(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.HasAccount() {
		return wallet, nil
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	name := displayName(user)
	resp, err := s.gateway.CreateReservedAccount(ctx, gateway.ReservedAccountRequest{
		AccountReference: AccountReference(userID),
		AccountName:      name,
		CustomerEmail:    user.Email,
		CustomerName:     user.FullName(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reserved account: %w", err)
	}
	number, bank, accountName := resp.Primary()
	if number == "" {
		return nil, errors.New("gateway returned no account number")
	}
	if accountName == "" {
		accountName = name
	}
	reference := resp.AccountReference
	if reference == "" {
		reference = AccountReference(userID)
	}

	err = s.store.AssignAccount(ctx, userID, models.ReservedAccount{
		AccountNumber:    number,
		BankName:         bank,
		AccountName:      accountName,
		AccountReference: reference,
	})
	if err != nil && !errors.Is(err, repositories.ErrAccountAssigned) {
		return nil, fmt.Errorf("failed to assign reserved account: %w", err)
	}

	s.logger.Info("reserved account assigned", "user_id", userID, "bank", bank)
	return s.store.GetWalletByUserID(ctx, userID)
}

func displayName(u *models.User) string {
	parts := strings.Fields(u.FullName())
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}

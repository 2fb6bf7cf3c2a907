package ledger

import (
	"context"
	"fmt"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/limits"
)

// FailDebit reverses a pending external debit inside tx: the amount goes back to the
// owner's wallet, the outflow reserved when the debit was created is released if the
// tracker is still on that day, and the entry is marked failed.
//
// The caller must already hold the lock on entry.
func FailDebit(ctx context.Context, tx repositories.Store, tracker *limits.Tracker, entry *models.Transaction, reason string, at time.Time) error {
	if !entry.IsExternalDebit() {
		return fmt.Errorf("entry %s is not an external debit", entry.Reference)
	}

	wallets, err := tx.LockWallets(ctx, entry.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to lock wallet for refund: %w", err)
	}
	wallet, ok := wallets[entry.OwnerID]
	if !ok {
		return apperrors.ErrWalletNotFound
	}
	wallet.Balance = wallet.Balance.Add(entry.Amount)
	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return fmt.Errorf("failed to refund wallet: %w", err)
	}

	t, err := tracker.Acquire(ctx, tx, entry.OwnerID)
	if err != nil {
		return err
	}
	limits.Release(t, limits.Outflow, entry.Amount, tracker.DayOf(entry.CreatedAt))
	if err := tx.SaveLimitTracker(ctx, t); err != nil {
		return fmt.Errorf("failed to save limit tracker: %w", err)
	}

	if err := entry.Transition(models.StatusFailed, at); err != nil {
		return err
	}
	if reason != "" {
		entry.SetMeta("failure_reason", reason)
	}
	if err := tx.SaveTransaction(ctx, entry); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

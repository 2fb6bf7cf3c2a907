// Package webhook applies gateway callbacks to the ledger exactly once.
//
// Every event locks its ledger entry first; a terminal entry is acknowledged without
// being touched again, which makes redelivered callbacks harmless.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/ledger"
	"ledgerpay/internal/services/limits"
	"ledgerpay/internal/services/notification"

	"github.com/shopspring/decimal"
)

// Funding event types.
const (
	EventTransactionSuccessful = "SUCCESSFUL_TRANSACTION"
	EventTransactionFailed     = "FAILED_TRANSACTION"
	EventTransactionCancelled  = "CANCELLED_TRANSACTION"
	EventTransactionExpired    = "EXPIRED_TRANSACTION"
)

// Disbursement event types.
const (
	EventDisbursementSuccessful = "SUCCESSFUL_DISBURSEMENT"
	EventDisbursementFailed     = "FAILED_DISBURSEMENT"
	EventDisbursementReversed   = "REVERSED_DISBURSEMENT"
)

const (
	PaymentStatusPaid         = "PAID"
	DisbursementStatusSuccess = "SUCCESS"
)

var (
	fundingEvents = map[string]bool{
		EventTransactionSuccessful: true,
		EventTransactionFailed:     true,
		EventTransactionCancelled:  true,
		EventTransactionExpired:    true,
	}
	disbursementEvents = map[string]bool{
		EventDisbursementSuccessful: true,
		EventDisbursementFailed:     true,
		EventDisbursementReversed:   true,
	}
)

// Ack results.
const (
	ResultProcessed        = "processed"
	ResultAlreadyProcessed = "already_processed"
	ResultIgnored          = "ignored"
)

type Ack struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

type FundingEvent struct {
	PaymentReference     string
	TransactionReference string
	EventType            string
	AmountPaid           decimal.Decimal
	PaymentStatus        string
}

type DisbursementEvent struct {
	Reference string
	EventType string
	Status    string
	Fee       decimal.Decimal
	Reason    string
}

// WalletInvalidator drops cached wallet views after balances change.
type WalletInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...uint) {}

type Reconciler struct {
	store    repositories.Store
	tracker  *limits.Tracker
	notifier notification.Notifier
	metrics  metrics.Recorder
	wallets  WalletInvalidator
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconciler(store repositories.Store, tracker *limits.Tracker, notifier notification.Notifier,
	recorder metrics.Recorder, wallets WalletInvalidator, logger *slog.Logger) *Reconciler {
	if store == nil {
		panic("store is required")
	}
	if tracker == nil {
		tracker = limits.NewTracker(time.UTC, nil)
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if wallets == nil {
		wallets = nopInvalidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		metrics:  recorder,
		wallets:  wallets,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleFundingEvent settles a pending Deposit. Only a SUCCESSFUL_TRANSACTION reporting
// PAID with a positive amount credits the wallet; every other recognised event fails
// the deposit.
func (r *Reconciler) HandleFundingEvent(ctx context.Context, ev FundingEvent) (Ack, error) {
	eventType := strings.ToUpper(strings.TrimSpace(ev.EventType))
	if !fundingEvents[eventType] {
		r.logger.Info("ignoring funding event", "event_type", ev.EventType, "reference", ev.PaymentReference)
		r.metrics.RecordWebhook("funding", ResultIgnored)
		return Ack{Result: ResultIgnored, Message: "event type not handled"}, nil
	}

	settled := eventType == EventTransactionSuccessful &&
		strings.EqualFold(strings.TrimSpace(ev.PaymentStatus), PaymentStatusPaid) &&
		ev.AmountPaid.IsPositive()

	var entry *models.Transaction
	ack := Ack{Result: ResultProcessed}
	err := r.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		var err error
		entry, err = r.lockEntry(ctx, tx, ev.PaymentReference)
		if err != nil {
			return err
		}
		if entry.Type != models.TransactionTypeDeposit {
			return apperrors.ErrTransactionNotFound
		}
		if entry.IsTerminal() {
			ack = Ack{Result: ResultAlreadyProcessed, Message: fmt.Sprintf("transaction already %s", entry.Status)}
			return nil
		}

		now := r.now().UTC()
		if ev.TransactionReference != "" {
			entry.GatewayReference = ev.TransactionReference
		}
		if !settled {
			if err := entry.Transition(models.StatusFailed, now); err != nil {
				return err
			}
			entry.SetMeta("failure_reason", eventType)
			ack.Message = "funding marked failed"
			return tx.SaveTransaction(ctx, entry)
		}

		wallets, err := tx.LockWallets(ctx, entry.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to lock wallet for funding: %w", err)
		}
		wallet := wallets[entry.OwnerID]
		wallet.Balance = wallet.Balance.Add(ev.AmountPaid)
		if err := tx.UpdateWallet(ctx, wallet); err != nil {
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		t, err := r.tracker.Acquire(ctx, tx, entry.OwnerID)
		if err != nil {
			return err
		}
		limits.Record(t, limits.Inflow, ev.AmountPaid)
		if err := tx.SaveLimitTracker(ctx, t); err != nil {
			return fmt.Errorf("failed to save limit tracker: %w", err)
		}

		if err := entry.Transition(models.StatusSuccess, now); err != nil {
			return err
		}
		entry.SetMeta("amount_paid", ev.AmountPaid.StringFixed(2))
		ack.Message = "wallet funded"
		return tx.SaveTransaction(ctx, entry)
	})
	if err != nil {
		return Ack{}, err
	}

	r.metrics.RecordWebhook("funding", ack.Result)
	if ack.Result != ResultProcessed {
		r.logger.Info("duplicate funding event", "reference", ev.PaymentReference, "event_type", eventType)
		return ack, nil
	}

	r.wallets.Invalidate(ctx, entry.OwnerID)
	if settled {
		r.metrics.RecordFunding("success", ev.AmountPaid)
		r.logger.Info("wallet funded", "reference", entry.Reference, "user_id", entry.OwnerID,
			"amount_paid", ev.AmountPaid.StringFixed(2))
		r.notify(ctx, entry.OwnerID, fmt.Sprintf("Your wallet was funded with NGN %s. Ref: %s",
			ev.AmountPaid.StringFixed(2), entry.Reference))
	} else {
		r.metrics.RecordFunding("failed", entry.Amount)
		r.logger.Info("funding failed", "reference", entry.Reference, "user_id", entry.OwnerID, "event_type", eventType)
	}
	return ack, nil
}

// HandleDisbursementEvent settles a pending external debit. Success records the fee;
// a failure or reversal refunds the sender and gives back the reserved outflow. A
// success event whose status is not SUCCESS leaves the entry pending for the sweep.
func (r *Reconciler) HandleDisbursementEvent(ctx context.Context, ev DisbursementEvent) (Ack, error) {
	eventType := strings.ToUpper(strings.TrimSpace(ev.EventType))
	if !disbursementEvents[eventType] {
		r.logger.Info("ignoring disbursement event", "event_type", ev.EventType, "reference", ev.Reference)
		r.metrics.RecordWebhook("disbursement", ResultIgnored)
		return Ack{Result: ResultIgnored, Message: "event type not handled"}, nil
	}

	succeeded := eventType == EventDisbursementSuccessful
	unconfirmed := succeeded && !strings.EqualFold(strings.TrimSpace(ev.Status), DisbursementStatusSuccess)

	var entry *models.Transaction
	ack := Ack{Result: ResultProcessed}
	err := r.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		var err error
		entry, err = r.lockEntry(ctx, tx, ev.Reference)
		if err != nil {
			return err
		}
		if !entry.IsExternalDebit() {
			return apperrors.ErrTransactionNotFound
		}
		if entry.IsTerminal() {
			ack = Ack{Result: ResultAlreadyProcessed, Message: fmt.Sprintf("transaction already %s", entry.Status)}
			return nil
		}

		if unconfirmed {
			ack = Ack{Result: ResultIgnored, Message: "success event without SUCCESS status; left pending"}
			return nil
		}

		now := r.now().UTC()
		if !succeeded {
			reason := strings.TrimSpace(ev.Reason)
			if reason == "" {
				reason = eventType
			}
			ack.Message = "transfer failed and refunded"
			return ledger.FailDebit(ctx, tx, r.tracker, entry, reason, now)
		}

		if !ev.Fee.IsNegative() {
			entry.Fee = ev.Fee
		}
		if err := entry.Transition(models.StatusSuccess, now); err != nil {
			return err
		}
		ack.Message = "transfer completed"
		return tx.SaveTransaction(ctx, entry)
	})
	if err != nil {
		return Ack{}, err
	}

	r.metrics.RecordWebhook("disbursement", ack.Result)
	switch ack.Result {
	case ResultIgnored:
		r.logger.Warn("disbursement success without confirmed status", "reference", ev.Reference, "status", ev.Status)
		return ack, nil
	case ResultAlreadyProcessed:
		r.logger.Info("duplicate disbursement event", "reference", ev.Reference, "event_type", eventType)
		return ack, nil
	}

	if succeeded {
		r.logger.Info("disbursement completed", "reference", entry.Reference, "fee", entry.Fee.StringFixed(2))
		r.notify(ctx, entry.OwnerID, fmt.Sprintf("Your transfer of NGN %s to %s was successful. Ref: %s",
			entry.Amount.StringFixed(2), entry.RecipientName, entry.Reference))
		return ack, nil
	}
	r.wallets.Invalidate(ctx, entry.OwnerID)
	r.logger.Warn("disbursement failed; sender refunded", "reference", entry.Reference, "event_type", eventType)
	r.notify(ctx, entry.OwnerID, fmt.Sprintf("Your transfer of NGN %s to %s failed and was refunded. Ref: %s",
		entry.Amount.StringFixed(2), entry.RecipientName, entry.Reference))
	return ack, nil
}

func (r *Reconciler) lockEntry(ctx context.Context, tx repositories.Store, reference string) (*models.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperrors.Validation("reference is required")
	}
	entry, err := tx.LockTransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (r *Reconciler) notify(ctx context.Context, userID uint, message string) {
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		r.logger.Warn("notification skipped", "user_id", userID, "error", err)
		return
	}
	r.notifier.Notify(ctx, user.Email, message)
}

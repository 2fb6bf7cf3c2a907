// Package sweeper closes out work the gateway never called back about: stuck
// disbursements, abandoned checkouts and wallets still waiting for a reserved account.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ledgerpay/internal/metrics"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/webhook"
)

// Job names, also used as metric labels.
const (
	JobDisbursements = "disbursements"
	JobFundings      = "fundings"
	JobAccounts      = "accounts"
)

type Gateway interface {
	TransferStatus(ctx context.Context, reference string) (*gateway.TransferResponse, error)
}

// Reconciler is where swept entries are settled, through the same path as webhooks.
type Reconciler interface {
	HandleFundingEvent(ctx context.Context, ev webhook.FundingEvent) (webhook.Ack, error)
	HandleDisbursementEvent(ctx context.Context, ev webhook.DisbursementEvent) (webhook.Ack, error)
}

type Provisioner interface {
	EnsureReservedAccount(ctx context.Context, userID uint) (*models.Wallet, error)
}

type Options struct {
	// PendingAfter is how old a pending external debit must be before the gateway is asked about it.
	PendingAfter time.Duration
	// FundingExpiry fails deposits nobody paid for, and debits the gateway never heard of.
	FundingExpiry time.Duration
	BatchSize     int
}

type Sweeper struct {
	store       repositories.Store
	gateway     Gateway
	reconciler  Reconciler
	provisioner Provisioner
	metrics     metrics.Recorder
	logger      *slog.Logger
	opts        Options
	now         func() time.Time
}

func New(store repositories.Store, gw Gateway, reconciler Reconciler, provisioner Provisioner,
	recorder metrics.Recorder, logger *slog.Logger, opts Options) *Sweeper {
	if opts.PendingAfter <= 0 {
		opts.PendingAfter = 15 * time.Minute
	}
	if opts.FundingExpiry <= 0 {
		opts.FundingExpiry = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:       store,
		gateway:     gw,
		reconciler:  reconciler,
		provisioner: provisioner,
		metrics:     recorder,
		logger:      logger.With("component", "sweeper"),
		opts:        opts,
		now:         time.Now,
	}
}

// ReconcileDisbursements asks the gateway about pending external debits and replays
// any final status through the reconciler. It returns how many entries were settled.
func (s *Sweeper) ReconcileDisbursements(ctx context.Context) (int, error) {
	now := s.now().UTC()
	entries, err := s.store.ListStalePending(ctx, models.TransactionTypeDebit, now.Add(-s.opts.PendingAfter), s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	handled := 0
	for i := range entries {
		entry := &entries[i]
		if !entry.IsExternalDebit() {
			continue
		}
		ev, ok := s.disbursementOutcome(ctx, entry, now)
		if !ok {
			continue
		}
		ack, err := s.reconciler.HandleDisbursementEvent(ctx, ev)
		if err != nil {
			s.logger.Error("failed to settle disbursement", "reference", entry.Reference, "error", err)
			continue
		}
		if ack.Result == webhook.ResultProcessed {
			handled++
		}
	}
	s.metrics.RecordSweep(JobDisbursements, handled)
	return handled, nil
}

// disbursementOutcome maps the gateway's view of entry to an event. ok is false while
// the transfer is still in flight or the gateway could not be reached.
func (s *Sweeper) disbursementOutcome(ctx context.Context, entry *models.Transaction, now time.Time) (webhook.DisbursementEvent, bool) {
	expired := entry.CreatedAt.Before(now.Add(-s.opts.FundingExpiry))
	ev := webhook.DisbursementEvent{Reference: entry.Reference}

	status, err := s.gateway.TransferStatus(ctx, entry.Reference)
	if err != nil {
		var ge *gateway.GatewayError
		if errors.As(err, &ge) && ge.Rejected() && expired {
			ev.EventType = webhook.EventDisbursementFailed
			ev.Reason = "transfer unknown to gateway"
			return ev, true
		}
		s.logger.Warn("disbursement status lookup failed", "reference", entry.Reference, "error", err)
		return ev, false
	}

	switch strings.ToUpper(status.Status) {
	case gateway.StatusSuccess:
		ev.EventType = webhook.EventDisbursementSuccessful
		ev.Status = webhook.DisbursementStatusSuccess
		ev.Fee = status.TotalFee
	case gateway.StatusFailed:
		ev.EventType = webhook.EventDisbursementFailed
		ev.Status = status.Status
	case gateway.StatusReversed:
		ev.EventType = webhook.EventDisbursementReversed
		ev.Status = status.Status
	case gateway.StatusPendingAuthorization:
		if !expired {
			return ev, false
		}
		ev.EventType = webhook.EventDisbursementFailed
		ev.Reason = "authorization expired"
	default:
		return ev, false
	}
	return ev, true
}

// ExpireFundings fails deposits whose checkout was never paid.
func (s *Sweeper) ExpireFundings(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.opts.FundingExpiry)
	entries, err := s.store.ListStalePending(ctx, models.TransactionTypeDeposit, cutoff, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, entry := range entries {
		ack, err := s.reconciler.HandleFundingEvent(ctx, webhook.FundingEvent{
			PaymentReference: entry.Reference,
			EventType:        webhook.EventTransactionExpired,
		})
		if err != nil {
			s.logger.Error("failed to expire funding", "reference", entry.Reference, "error", err)
			continue
		}
		if ack.Result == webhook.ResultProcessed {
			handled++
		}
	}
	s.metrics.RecordSweep(JobFundings, handled)
	return handled, nil
}

// ProvisionAccounts retries reserved account creation for wallets that have none.
func (s *Sweeper) ProvisionAccounts(ctx context.Context) (int, error) {
	wallets, err := s.store.ListWalletsWithoutAccount(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, w := range wallets {
		if _, err := s.provisioner.EnsureReservedAccount(ctx, w.UserID); err != nil {
			s.logger.Warn("reserved account retry failed", "user_id", w.UserID, "error", err)
			continue
		}
		handled++
	}
	s.metrics.RecordSweep(JobAccounts, handled)
	return handled, nil
}

// RunOnce runs every job in turn; one job failing does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	jobs := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{JobDisbursements, s.ReconcileDisbursements},
		{JobFundings, s.ExpireFundings},
		{JobAccounts, s.ProvisionAccounts},
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		n, err := job.run(ctx)
		if err != nil {
			s.logger.Error("sweep job failed", "job", job.name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info("sweep job completed", "job", job.name, "handled", n)
		}
	}
}

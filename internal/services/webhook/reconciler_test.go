package webhook

import (
	"context"
	"testing"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/repositories/memory"
	"ledgerpay/internal/services/limits"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *memory.Store
	tracker    *limits.Tracker
	reconciler *Reconciler
	now        time.Time
	user       *models.User
}

func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	f.tracker = limits.NewTracker(time.UTC, func() time.Time { return f.now })
	f.reconciler = NewReconciler(f.store, f.tracker, nil, nil, nil, nil)
	f.reconciler.now = func() time.Time { return f.now }

	ctx := context.Background()
	f.user = &models.User{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "x"}
	require.NoError(t, f.store.CreateUser(ctx, f.user))
	require.NoError(t, f.store.CreateWallet(ctx, &models.Wallet{UserID: f.user.ID, Balance: decimal.NewFromInt(balance)}))
	return f
}

func (f *fixture) seedDeposit(t *testing.T, reference string, amount int64) {
	t.Helper()
	require.NoError(t, f.store.CreateTransactions(context.Background(), &models.Transaction{
		Reference: reference,
		OwnerID:   f.user.ID,
		Amount:    decimal.NewFromInt(amount),
		Type:      models.TransactionTypeDeposit,
		Status:    models.StatusPending,
		CreatedAt: f.now,
	}))
}

// seedDebit records a pending external debit together with the outflow it reserved.
func (f *fixture) seedDebit(t *testing.T, reference string, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		tr, err := f.tracker.Acquire(ctx, tx, f.user.ID)
		if err != nil {
			return err
		}
		limits.Record(tr, limits.Outflow, decimal.NewFromInt(amount))
		if err := tx.SaveLimitTracker(ctx, tr); err != nil {
			return err
		}
		return tx.CreateTransactions(ctx, &models.Transaction{
			Reference:     reference,
			OwnerID:       f.user.ID,
			RecipientName: "Chidi Okeke",
			Amount:        decimal.NewFromInt(amount),
			Type:          models.TransactionTypeDebit,
			TransferType:  models.TransferExternal,
			Status:        models.StatusPending,
			CreatedAt:     f.now,
		})
	}))
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	w, err := f.store.GetWalletByUserID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return w.Balance.StringFixed(2)
}

func (f *fixture) entry(t *testing.T, reference string) *models.Transaction {
	t.Helper()
	e, err := f.store.GetTransactionByReference(context.Background(), reference)
	require.NoError(t, err)
	return e
}

func (f *fixture) counters(t *testing.T) models.LimitTracker {
	t.Helper()
	snap, err := f.tracker.Snapshot(context.Background(), f.store, f.user.ID)
	require.NoError(t, err)
	return snap
}

func paid(reference string, amount int64) FundingEvent {
	return FundingEvent{
		PaymentReference: reference,
		EventType:        EventTransactionSuccessful,
		AmountPaid:       decimal.NewFromInt(amount),
		PaymentStatus:    "PAID",
	}
}

func TestFunding_PaidCreditsOnceAndReplayIsNoop(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDeposit(t, "FND-1-abc", 2000)
	ctx := context.Background()

	ack, err := f.reconciler.HandleFundingEvent(ctx, paid("FND-1-abc", 2000))
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, ack.Result)
	assert.Equal(t, "2000.00", f.balance(t))

	e := f.entry(t, "FND-1-abc")
	assert.Equal(t, models.StatusSuccess, e.Status)
	assert.NotNil(t, e.CompletedAt)
	assert.Equal(t, "2000.00", e.Metadata["amount_paid"])
	assert.Equal(t, "2000", f.counters(t).DailyInflow.String())

	ack, err = f.reconciler.HandleFundingEvent(ctx, paid("FND-1-abc", 2000))
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyProcessed, ack.Result)
	assert.Equal(t, "2000.00", f.balance(t))
	assert.Equal(t, "2000", f.counters(t).DailyInflow.String())
}

func TestFunding_CreditsAmountActuallyPaid(t *testing.T) {
	f := newFixture(t, 100)
	f.seedDeposit(t, "FND-1-abc", 2000)

	ev := paid("FND-1-abc", 1500)
	ev.PaymentStatus = "paid"
	_, err := f.reconciler.HandleFundingEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "1600.00", f.balance(t))
}

func TestFunding_NonSettlingEventsFailWithoutCredit(t *testing.T) {
	tests := []struct {
		name string
		ev   FundingEvent
	}{
		{"failed", FundingEvent{EventType: EventTransactionFailed, PaymentStatus: "FAILED"}},
		{"cancelled", FundingEvent{EventType: EventTransactionCancelled}},
		{"expired", FundingEvent{EventType: EventTransactionExpired}},
		{"successful but pending", FundingEvent{EventType: EventTransactionSuccessful, PaymentStatus: "PENDING", AmountPaid: decimal.NewFromInt(2000)}},
		{"successful with zero amount", FundingEvent{EventType: EventTransactionSuccessful, PaymentStatus: "PAID"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.seedDeposit(t, "FND-1-abc", 2000)
			tt.ev.PaymentReference = "FND-1-abc"

			ack, err := f.reconciler.HandleFundingEvent(context.Background(), tt.ev)
			require.NoError(t, err)
			assert.Equal(t, ResultProcessed, ack.Result)
			assert.Equal(t, models.StatusFailed, f.entry(t, "FND-1-abc").Status)
			assert.Equal(t, "0.00", f.balance(t))
			assert.True(t, f.counters(t).DailyInflow.IsZero())
		})
	}
}

func TestFunding_UnknownEventIsIgnoredWithoutLookup(t *testing.T) {
	f := newFixture(t, 0)

	ack, err := f.reconciler.HandleFundingEvent(context.Background(), FundingEvent{
		PaymentReference: "does-not-exist",
		EventType:        "REFUND_COMPLETED",
	})
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, ack.Result)
}

func TestFunding_UnknownReference(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.reconciler.HandleFundingEvent(context.Background(), paid("FND-404", 100))
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestFunding_ReferenceOfDebitIsNotFound(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDebit(t, "TRF-1-abc", 500)

	_, err := f.reconciler.HandleFundingEvent(context.Background(), paid("TRF-1-abc", 500))
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	assert.Equal(t, models.StatusPending, f.entry(t, "TRF-1-abc").Status)
}

func TestDisbursement_SuccessRecordsFee(t *testing.T) {
	f := newFixture(t, 500)
	f.seedDebit(t, "TRF-1-abc", 500)

	ack, err := f.reconciler.HandleDisbursementEvent(context.Background(), DisbursementEvent{
		Reference: "TRF-1-abc",
		EventType: EventDisbursementSuccessful,
		Status:    "SUCCESS",
		Fee:       decimal.RequireFromString("10.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, ack.Result)

	e := f.entry(t, "TRF-1-abc")
	assert.Equal(t, models.StatusSuccess, e.Status)
	assert.Equal(t, "10.75", e.Fee.StringFixed(2))
	assert.Equal(t, "500.00", f.balance(t))
	assert.Equal(t, "500", f.counters(t).DailyOutflow.String())
}

func TestDisbursement_FailureRefundsAndReleasesOnce(t *testing.T) {
	f := newFixture(t, 500)
	f.seedDebit(t, "TRF-1-abc", 500)
	ev := DisbursementEvent{Reference: "TRF-1-abc", EventType: EventDisbursementFailed, Status: "FAILED"}

	ack, err := f.reconciler.HandleDisbursementEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, ack.Result)
	assert.Equal(t, "1000.00", f.balance(t))
	assert.True(t, f.counters(t).DailyOutflow.IsZero())

	e := f.entry(t, "TRF-1-abc")
	assert.Equal(t, models.StatusFailed, e.Status)
	assert.Equal(t, EventDisbursementFailed, e.Metadata["failure_reason"])

	ack, err = f.reconciler.HandleDisbursementEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyProcessed, ack.Result)
	assert.Equal(t, "1000.00", f.balance(t))
}

func TestDisbursement_SuccessEventWithConflictingStatusStaysPending(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDebit(t, "TRF-1-abc", 500)

	ack, err := f.reconciler.HandleDisbursementEvent(context.Background(), DisbursementEvent{
		Reference: "TRF-1-abc", EventType: EventDisbursementSuccessful, Status: "FAILED",
	})
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, ack.Result)
	assert.Equal(t, models.StatusPending, f.entry(t, "TRF-1-abc").Status)
	assert.Equal(t, "0.00", f.balance(t))
}

func TestDisbursement_SuccessEventWithoutStatusStaysPending(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDebit(t, "TRF-1-abc", 500)
	ev := DisbursementEvent{Reference: "TRF-1-abc", EventType: EventDisbursementSuccessful}

	ack, err := f.reconciler.HandleDisbursementEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, ack.Result)
	assert.Equal(t, models.StatusPending, f.entry(t, "TRF-1-abc").Status)
	assert.Equal(t, "0.00", f.balance(t))
	assert.Equal(t, "500", f.counters(t).DailyOutflow.String())

	// The confirmed event settles it afterwards.
	ev.Status = "SUCCESS"
	ack, err = f.reconciler.HandleDisbursementEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, ack.Result)
	assert.Equal(t, models.StatusSuccess, f.entry(t, "TRF-1-abc").Status)
	assert.Equal(t, "0.00", f.balance(t))
}

func TestDisbursement_ReversalOnLaterDayKeepsTodaysCounters(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDebit(t, "TRF-1-abc", 500)

	f.now = f.now.Add(24 * time.Hour)
	ctx := context.Background()
	require.NoError(t, f.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		tr, err := f.tracker.Acquire(ctx, tx, f.user.ID)
		if err != nil {
			return err
		}
		limits.Record(tr, limits.Outflow, decimal.NewFromInt(300))
		return tx.SaveLimitTracker(ctx, tr)
	}))

	_, err := f.reconciler.HandleDisbursementEvent(ctx, DisbursementEvent{
		Reference: "TRF-1-abc", EventType: EventDisbursementReversed,
	})
	require.NoError(t, err)
	assert.Equal(t, "500.00", f.balance(t))
	assert.Equal(t, "300", f.counters(t).DailyOutflow.String())
}

func TestDisbursement_UnknownEventAndReference(t *testing.T) {
	f := newFixture(t, 0)
	f.seedDeposit(t, "FND-1-abc", 100)
	ctx := context.Background()

	ack, err := f.reconciler.HandleDisbursementEvent(ctx, DisbursementEvent{Reference: "nope", EventType: "SETTLEMENT"})
	require.NoError(t, err)
	assert.Equal(t, ResultIgnored, ack.Result)

	_, err = f.reconciler.HandleDisbursementEvent(ctx, DisbursementEvent{Reference: "nope", EventType: EventDisbursementFailed})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)

	_, err = f.reconciler.HandleDisbursementEvent(ctx, DisbursementEvent{Reference: "FND-1-abc", EventType: EventDisbursementFailed})
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	assert.Equal(t, models.StatusPending, f.entry(t, "FND-1-abc").Status)
}

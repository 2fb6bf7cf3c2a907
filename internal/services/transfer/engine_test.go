package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories/memory"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/ledger"
	"ledgerpay/internal/services/limits"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FindBank(ctx context.Context, name string) (gateway.Bank, error) {
	args := m.Called(name)
	return args.Get(0).(gateway.Bank), args.Error(1)
}

func (m *MockGateway) ValidateAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetails, error) {
	args := m.Called(accountNumber, bankCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AccountDetails), args.Error(1)
}

func (m *MockGateway) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResponse), args.Error(1)
}

func (m *MockGateway) AuthorizeTransfer(ctx context.Context, reference, otp string) (*gateway.TransferResponse, error) {
	args := m.Called(reference, otp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResponse), args.Error(1)
}

type fixture struct {
	store   *memory.Store
	gw      *MockGateway
	engine  *Engine
	tracker *limits.Tracker
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		gw:    new(MockGateway),
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.tracker = limits.NewTracker(time.UTC, func() time.Time { return f.now })
	f.engine = NewEngine(Deps{
		Store:         f.store,
		Gateway:       f.gw,
		Tracker:       f.tracker,
		MinimumAmount: decimal.NewFromInt(10),
	})
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) seed(t *testing.T, email, account string, balance int64, tr models.Tier) *models.User {
	t.Helper()
	ctx := context.Background()
	u := &models.User{FirstName: "User", LastName: email, Email: email, Password: "x"}
	require.NoError(t, f.store.CreateUser(ctx, u))
	acct := account
	require.NoError(t, f.store.CreateWallet(ctx, &models.Wallet{
		UserID:        u.ID,
		Balance:       decimal.NewFromInt(balance),
		Tier:          tr,
		AccountNumber: &acct,
	}))
	return u
}

func (f *fixture) balance(t *testing.T, userID uint) string {
	t.Helper()
	w, err := f.store.GetWalletByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance.StringFixed(2)
}

func (f *fixture) counters(t *testing.T, userID uint) models.LimitTracker {
	t.Helper()
	snap, err := f.tracker.Snapshot(context.Background(), f.store, userID)
	require.NoError(t, err)
	return snap
}

func internalReq(senderID uint, account string, amount int64) Request {
	return Request{
		SenderID:         senderID,
		RecipientAccount: account,
		Amount:           decimal.NewFromInt(amount),
		TransferType:     models.TransferInternal,
		Description:      "rent",
	}
}

func TestTransfer_InternalMovesMoneyAndWritesPair(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	bob := f.seed(t, "bob@example.com", "1000000002", 0, models.Tier1)

	res, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 500))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	assert.Equal(t, "500.00", f.balance(t, alice.ID))
	assert.Equal(t, "500.00", f.balance(t, bob.ID))
	assert.Equal(t, "500", f.counters(t, alice.ID).DailyOutflow.String())
	assert.Equal(t, "500", f.counters(t, bob.ID).DailyInflow.String())

	debit, err := f.store.GetTransactionByReference(context.Background(), res.Reference)
	require.NoError(t, err)
	credit, err := f.store.GetTransactionByReference(context.Background(), ledger.CreditReference(res.Reference))
	require.NoError(t, err)

	assert.Equal(t, models.TransactionTypeDebit, debit.Type)
	assert.Equal(t, models.TransactionTypeCredit, credit.Type)
	assert.Equal(t, models.StatusSuccess, debit.Status)
	assert.Equal(t, models.StatusSuccess, credit.Status)
	assert.Equal(t, alice.ID, debit.OwnerID)
	assert.Equal(t, bob.ID, credit.OwnerID)
	require.NotNil(t, debit.PairReference)
	require.NotNil(t, credit.PairReference)
	assert.Equal(t, *debit.PairReference, *credit.PairReference)
	assert.Equal(t, "User bob@example.com", debit.RecipientName)
	assert.Equal(t, "1000000001", credit.SenderAccount)
}

func TestTransfer_ValidationFailuresTouchNothing(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.seed(t, "bob@example.com", "1000000002", 0, models.Tier1)

	tests := []struct {
		name string
		req  Request
		kind apperrors.Kind
		is   error
	}{
		{"minimum amount", internalReq(alice.ID, "1000000002", 10), apperrors.KindValidation, apperrors.ErrInvalidAmount},
		{"three decimals", Request{SenderID: alice.ID, RecipientAccount: "1000000002", Amount: decimal.RequireFromString("20.005"), TransferType: models.TransferInternal}, apperrors.KindValidation, apperrors.ErrInvalidAmount},
		{"bad type", Request{SenderID: alice.ID, RecipientAccount: "1000000002", Amount: decimal.NewFromInt(50), TransferType: "wire"}, apperrors.KindValidation, nil},
		{"external without bank", Request{SenderID: alice.ID, RecipientAccount: "0011223344", Amount: decimal.NewFromInt(50), TransferType: models.TransferExternal}, apperrors.KindValidation, nil},
		{"unknown recipient", internalReq(alice.ID, "9999999999", 50), apperrors.KindNotFound, nil},
		{"self transfer", internalReq(alice.ID, "1000000001", 50), apperrors.KindValidation, apperrors.ErrSelfTransfer},
		{"insufficient funds", internalReq(alice.ID, "1000000002", 5000), apperrors.KindInsufficientFunds, apperrors.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Transfer(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			assert.Equal(t, "1000.00", f.balance(t, alice.ID))
		})
	}

	items, _, err := f.store.ListTransactionsByOwner(context.Background(), alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTransfer_SelfTransferCheckedBeforeBalance(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 0, models.Tier1)

	_, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000001", 50))
	assert.ErrorIs(t, err, apperrors.ErrSelfTransfer)
}

func TestTransfer_SenderOutflowCap(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 45000, models.Tier1)
	f.seed(t, "bob@example.com", "1000000002", 0, models.Tier3)

	_, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 15000))
	require.NoError(t, err)

	_, err = f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 6000))
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)
	assert.Equal(t, "30000.00", f.balance(t, alice.ID))
	assert.Equal(t, "15000", f.counters(t, alice.ID).DailyOutflow.String())

	// Exactly up to the cap is allowed.
	_, err = f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 5000))
	assert.NoError(t, err)
}

func TestTransfer_RecipientInflowCap(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 100000, models.Tier3)
	bob := f.seed(t, "bob@example.com", "1000000002", 0, models.Tier1)

	_, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 15000))
	require.NoError(t, err)

	_, err = f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 6000))
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)
	assert.Equal(t, "15000.00", f.balance(t, bob.ID))
	assert.Equal(t, "15000", f.counters(t, alice.ID).DailyOutflow.String())
}

func TestTransfer_RecipientBalanceCap(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 100000, models.Tier3)
	bob := f.seed(t, "bob@example.com", "1000000002", 45000, models.Tier1)

	_, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 6000))
	assert.ErrorIs(t, err, apperrors.ErrBalanceCapExceeded)
	assert.Equal(t, "45000.00", f.balance(t, bob.ID))
	assert.Equal(t, "100000.00", f.balance(t, alice.ID))
	assert.True(t, f.counters(t, bob.ID).DailyInflow.IsZero())
}

func TestTransfer_CountersResetOnNewDay(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 45000, models.Tier1)
	f.seed(t, "bob@example.com", "1000000002", 0, models.Tier3)

	_, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 20000))
	require.NoError(t, err)
	_, err = f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 100))
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	f.now = f.now.Add(24 * time.Hour)
	_, err = f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 100))
	require.NoError(t, err)
	assert.Equal(t, "100", f.counters(t, alice.ID).DailyOutflow.String())
}

func TestTransfer_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	bob := f.seed(t, "bob@example.com", "1000000002", 0, models.Tier1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Transfer(context.Background(), internalReq(alice.ID, "1000000002", 100)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, "0.00", f.balance(t, alice.ID))
	assert.Equal(t, "1000.00", f.balance(t, bob.ID))
}

func externalReq(senderID uint, amount int64) Request {
	return Request{
		SenderID:         senderID,
		RecipientAccount: "0011223344",
		Amount:           decimal.NewFromInt(amount),
		TransferType:     models.TransferExternal,
		BankName:         "access bank",
		Description:      "school fees",
	}
}

func (f *fixture) expectResolve() {
	f.gw.On("FindBank", "access bank").Return(gateway.Bank{Name: "Access Bank", Code: "044"}, nil)
	f.gw.On("ValidateAccount", "0011223344", "044").Return(&gateway.AccountDetails{
		AccountNumber: "0011223344", AccountName: "Chidi Okeke", BankCode: "044",
	}, nil)
}

func TestTransfer_ExternalUnknownBank(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.gw.On("FindBank", "access bank").Return(gateway.Bank{}, apperrors.ErrBankNotFound)

	_, err := f.engine.Transfer(context.Background(), externalReq(alice.ID, 500))
	assert.ErrorIs(t, err, apperrors.ErrBankNotFound)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Equal(t, "1000.00", f.balance(t, alice.ID))
	f.gw.AssertNotCalled(t, "InitiateTransfer", mock.Anything)
}

func TestTransfer_ExternalPending(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.expectResolve()
	f.gw.On("InitiateTransfer", mock.MatchedBy(func(r gateway.TransferRequest) bool {
		return r.DestinationBankCode == "044" && r.Amount.Equal(decimal.NewFromInt(500)) && r.Narration == "school fees"
	})).Return(&gateway.TransferResponse{Status: gateway.StatusPending}, nil)

	res, err := f.engine.Transfer(context.Background(), externalReq(alice.ID, 500))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, "500.00", f.balance(t, alice.ID))
	assert.Equal(t, "500", f.counters(t, alice.ID).DailyOutflow.String())

	entry, err := f.store.GetTransactionByReference(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
	assert.True(t, entry.IsExternalDebit())
	assert.Equal(t, "Chidi Okeke", entry.RecipientName)
	assert.Equal(t, "Access Bank", entry.RecipientBank)
	assert.Equal(t, "044", entry.Metadata["bank_code"])
}

func TestTransfer_ExternalPendingAuthorization(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.expectResolve()
	f.gw.On("InitiateTransfer", mock.Anything).Return(&gateway.TransferResponse{Status: gateway.StatusPendingAuthorization}, nil)

	res, err := f.engine.Transfer(context.Background(), externalReq(alice.ID, 500))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingAuthorization, res.Status)

	entry, err := f.store.GetTransactionByReference(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
}

func TestTransfer_ExternalRejectedIsCompensated(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.expectResolve()
	f.gw.On("InitiateTransfer", mock.Anything).Return(nil, &gateway.GatewayError{
		StatusCode: 400,
		Message:    "Insufficient balance in source account",
		Body:       map[string]interface{}{"responseCode": "D01"},
	})

	_, err := f.engine.Transfer(context.Background(), externalReq(alice.ID, 500))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGatewayRejected)
	de, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"responseCode": "D01"}, de.Details)

	assert.Equal(t, "1000.00", f.balance(t, alice.ID))
	assert.True(t, f.counters(t, alice.ID).DailyOutflow.IsZero())

	items, _, err := f.store.ListTransactionsByOwner(context.Background(), alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusFailed, items[0].Status)
	assert.Equal(t, "Insufficient balance in source account", items[0].Metadata["failure_reason"])
}

func TestTransfer_ExternalUpstreamFailureStaysPending(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	f.expectResolve()
	f.gw.On("InitiateTransfer", mock.Anything).Return(nil, &gateway.GatewayError{StatusCode: 503, Message: "unavailable"})

	res, err := f.engine.Transfer(context.Background(), externalReq(alice.ID, 500))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, "500.00", f.balance(t, alice.ID))

	entry, err := f.store.GetTransactionByReference(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
}

func TestAuthorizeTransfer(t *testing.T) {
	f := newFixture(t)
	alice := f.seed(t, "alice@example.com", "1000000001", 1000, models.Tier1)
	mallory := f.seed(t, "mallory@example.com", "1000000003", 0, models.Tier1)
	f.seed(t, "bob@example.com", "1000000002", 0, models.Tier1)
	f.expectResolve()
	f.gw.On("InitiateTransfer", mock.Anything).Return(&gateway.TransferResponse{Status: gateway.StatusPendingAuthorization}, nil)
	ctx := context.Background()

	res, err := f.engine.Transfer(ctx, externalReq(alice.ID, 500))
	require.NoError(t, err)

	_, err = f.engine.AuthorizeTransfer(ctx, alice.ID, res.Reference, " ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.engine.AuthorizeTransfer(ctx, mallory.ID, res.Reference, "123456")
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)

	internal, err := f.engine.Transfer(ctx, internalReq(alice.ID, "1000000002", 100))
	require.NoError(t, err)
	_, err = f.engine.AuthorizeTransfer(ctx, alice.ID, internal.Reference, "123456")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	f.gw.On("AuthorizeTransfer", res.Reference, "123456").Return(&gateway.TransferResponse{
		Reference: res.Reference, Status: gateway.StatusSuccess,
	}, nil)
	out, err := f.engine.AuthorizeTransfer(ctx, alice.ID, res.Reference, "123456")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusSuccess, out.Status)

	entry, err := f.store.GetTransactionByReference(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
}

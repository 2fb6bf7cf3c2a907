package funding

import (
	"context"
	"errors"
	"testing"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories/memory"
	"ledgerpay/internal/services/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitPayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentResponse), args.Error(1)
}

func setup(t *testing.T, balance int64) (*memory.Store, *MockGateway, *Service, uint) {
	t.Helper()
	store := memory.New()
	gw := new(MockGateway)
	ctx := context.Background()
	u := &models.User{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "x"}
	require.NoError(t, store.CreateUser(ctx, u))
	require.NoError(t, store.CreateWallet(ctx, &models.Wallet{UserID: u.ID, Balance: decimal.NewFromInt(balance)}))
	return store, gw, NewService(store, gw, nil, nil), u.ID
}

func TestInitiate_CreatesPendingDeposit(t *testing.T) {
	store, gw, svc, userID := setup(t, 0)
	gw.On("InitPayment", mock.MatchedBy(func(r gateway.PaymentRequest) bool {
		return r.CustomerEmail == "ada@example.com" && r.Amount.Equal(decimal.NewFromInt(2000))
	})).Return(&gateway.PaymentResponse{CheckoutURL: "https://checkout.example.com/x"}, nil)

	res, err := svc.Initiate(context.Background(), userID, decimal.NewFromInt(2000))
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/x", res.CheckoutURL)

	entry, err := store.GetTransactionByReference(context.Background(), res.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeDeposit, entry.Type)
	assert.Equal(t, models.StatusPending, entry.Status)

	w, err := store.GetWalletByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestInitiate_RespectsTierCaps(t *testing.T) {
	_, gw, svc, userID := setup(t, 45000)

	_, err := svc.Initiate(context.Background(), userID, decimal.NewFromInt(25000))
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	_, err = svc.Initiate(context.Background(), userID, decimal.NewFromInt(6000))
	assert.ErrorIs(t, err, apperrors.ErrBalanceCapExceeded)

	_, err = svc.Initiate(context.Background(), userID, decimal.Zero)
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
	gw.AssertNotCalled(t, "InitPayment", mock.Anything)
}

func TestInitiate_GatewayFailureAbandonsDeposit(t *testing.T) {
	store, gw, svc, userID := setup(t, 0)
	gw.On("InitPayment", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := svc.Initiate(context.Background(), userID, decimal.NewFromInt(500))
	assert.ErrorIs(t, err, apperrors.ErrGateway)

	items, _, err := store.ListTransactionsByOwner(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusFailed, items[0].Status)
}

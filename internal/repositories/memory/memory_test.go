package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWallet(t *testing.T, s *Store, email, account string, balance int64) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	user := &models.User{FirstName: "Test", LastName: email, Email: email}
	require.NoError(t, s.CreateUser(ctx, user))
	w := &models.Wallet{UserID: user.ID, Balance: decimal.NewFromInt(balance), AccountNumber: &account}
	require.NoError(t, s.CreateWallet(ctx, w))
	return w
}

func TestStore_TransactionRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := seedWallet(t, s, "a@example.com", "1000000001", 500)

	boom := errors.New("boom")
	err := s.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		locked, err := tx.LockWallets(ctx, w.UserID)
		require.NoError(t, err)
		locked[w.UserID].Balance = decimal.NewFromInt(1)
		require.NoError(t, tx.UpdateWallet(ctx, locked[w.UserID]))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetWalletByUserID(ctx, w.UserID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(got.Balance))
}

func TestStore_TransactionCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := seedWallet(t, s, "a@example.com", "1000000001", 500)

	err := s.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		locked, err := tx.LockWallets(ctx, w.UserID)
		if err != nil {
			return err
		}
		locked[w.UserID].Balance = decimal.NewFromInt(250)
		if err := tx.UpdateWallet(ctx, locked[w.UserID]); err != nil {
			return err
		}
		return tx.CreateTransactions(ctx, &models.Transaction{
			Reference: "ref-1", OwnerID: w.UserID, Amount: decimal.NewFromInt(250), Type: models.TransactionTypeDebit,
		})
	})
	require.NoError(t, err)

	got, _ := s.GetWalletByUserID(ctx, w.UserID)
	assert.True(t, decimal.NewFromInt(250).Equal(got.Balance))
	entry, err := s.GetTransactionByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := seedWallet(t, s, "a@example.com", "1000000001", 500)

	got, _ := s.GetWalletByUserID(ctx, w.UserID)
	got.Balance = decimal.NewFromInt(9)

	again, _ := s.GetWalletByUserID(ctx, w.UserID)
	assert.True(t, decimal.NewFromInt(500).Equal(again.Balance))
}

func TestStore_UniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedWallet(t, s, "a@example.com", "1000000001", 0)

	err := s.CreateUser(ctx, &models.User{Email: "A@example.com"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	entry := &models.Transaction{Reference: "dup", OwnerID: 1, Amount: decimal.NewFromInt(1), Type: models.TransactionTypeDeposit}
	require.NoError(t, s.CreateTransactions(ctx, entry))
	err = s.CreateTransactions(ctx, &models.Transaction{Reference: "dup", OwnerID: 1, Amount: decimal.NewFromInt(1), Type: models.TransactionTypeDeposit})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	user := &models.User{Email: "b@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.CreateUpgradeRequest(ctx, &models.TierUpgradeRequest{UserID: user.ID, CurrentTier: models.Tier1, RequestedTier: models.Tier2}))
	err = s.CreateUpgradeRequest(ctx, &models.TierUpgradeRequest{UserID: user.ID, CurrentTier: models.Tier1, RequestedTier: models.Tier2})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.True(t, repositories.ViolatesIndex(err, repositories.IndexPendingUpgradeUser))
}

func TestStore_PendingVerificationIDIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &models.User{Email: "a@example.com"}
	b := &models.User{Email: "b@example.com"}
	require.NoError(t, s.CreateUser(ctx, a))
	require.NoError(t, s.CreateUser(ctx, b))
	vid := "12345678901"

	first := &models.TierUpgradeRequest{UserID: a.ID, CurrentTier: models.Tier1, RequestedTier: models.Tier2, VerificationID: &vid}
	require.NoError(t, s.CreateUpgradeRequest(ctx, first))

	err := s.CreateUpgradeRequest(ctx, &models.TierUpgradeRequest{UserID: b.ID, CurrentTier: models.Tier1, RequestedTier: models.Tier2, VerificationID: &vid})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.True(t, repositories.ViolatesIndex(err, repositories.IndexPendingUpgradeVerification))

	// Only pending requests hold the id.
	first.Status = models.UpgradeRejected
	require.NoError(t, s.SaveUpgradeRequest(ctx, first))
	assert.NoError(t, s.CreateUpgradeRequest(ctx, &models.TierUpgradeRequest{UserID: b.ID, CurrentTier: models.Tier1, RequestedTier: models.Tier2, VerificationID: &vid}))
}

func TestStore_AssignAccountOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := &models.User{Email: "c@example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.CreateWallet(ctx, &models.Wallet{UserID: user.ID}))

	pending, err := s.ListWalletsWithoutAccount(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	acct := models.ReservedAccount{AccountNumber: "2000000001", BankName: "Wema", AccountName: "c", AccountReference: "user_1"}
	require.NoError(t, s.AssignAccount(ctx, user.ID, acct))
	assert.ErrorIs(t, s.AssignAccount(ctx, user.ID, acct), repositories.ErrAccountAssigned)

	w, err := s.GetWalletByAccountNumber(ctx, "2000000001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, w.UserID)

	pending, _ = s.ListWalletsWithoutAccount(ctx, 10)
	assert.Empty(t, pending)
}

func TestStore_ListTransactionsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, ref := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateTransactions(ctx, &models.Transaction{
			Reference: ref, OwnerID: 7, Amount: decimal.NewFromInt(1), Type: models.TransactionTypeDeposit,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, total, err := s.ListTransactionsByOwner(ctx, 7, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].Reference)
	assert.Equal(t, "mid", entries[1].Reference)

	stale, err := s.ListStalePending(ctx, models.TransactionTypeDeposit, base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "old", stale[0].Reference)
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerpay/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrAccountAssigned = errors.New("reserved account already assigned")
)

// Unique indexes callers tell apart when a create collides.
const (
	IndexPendingUpgradeUser         = "idx_upgrade_pending_user"
	IndexPendingUpgradeVerification = "idx_upgrade_pending_verification"
)

// DuplicateError is a unique violation on a named constraint. It matches ErrDuplicate.
type DuplicateError struct {
	Op         string
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrDuplicate, e.Constraint)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// ViolatesIndex reports whether err is a unique violation on index.
func ViolatesIndex(err error, index string) bool {
	var de *DuplicateError
	return errors.As(err, &de) && de.Constraint == index
}

// WalletRepository persists wallets. Lock* methods must run inside ExecuteInTransaction.
type WalletRepository interface {
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error)
	GetWalletByAccountNumber(ctx context.Context, accountNumber string) (*models.Wallet, error)
	// LockWallets takes row locks in ascending user id order regardless of argument order.
	LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet) error
	AssignAccount(ctx context.Context, userID uint, account models.ReservedAccount) error
	ListWalletsWithoutAccount(ctx context.Context, limit int) ([]models.Wallet, error)
}

// LimitRepository persists per-day limit counters.
type LimitRepository interface {
	// LockLimitTracker returns the user's tracker under a row lock, creating it dated
	// today when it does not exist yet.
	LockLimitTracker(ctx context.Context, userID uint, today time.Time) (*models.LimitTracker, error)
	GetLimitTracker(ctx context.Context, userID uint) (*models.LimitTracker, error)
	SaveLimitTracker(ctx context.Context, tracker *models.LimitTracker) error
}

// LedgerRepository persists ledger entries.
type LedgerRepository interface {
	CreateTransactions(ctx context.Context, entries ...*models.Transaction) error
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	LockTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, entry *models.Transaction) error
	ListTransactionsByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]models.Transaction, int64, error)
	ListStalePending(ctx context.Context, txType models.TransactionType, before time.Time, limit int) ([]models.Transaction, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByVerificationID(ctx context.Context, verificationID string) (*models.User, error)
	SetVerificationID(ctx context.Context, userID uint, verificationID string) error
}

type UpgradeRepository interface {
	CreateUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error
	GetPendingUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error)
	GetLatestUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error)
	FindPendingUpgradeByVerificationID(ctx context.Context, verificationID string) (*models.TierUpgradeRequest, error)
	LockUpgradeRequest(ctx context.Context, id uint) (*models.TierUpgradeRequest, error)
	SaveUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error
	ListUpgradeRequests(ctx context.Context, status models.UpgradeStatus, limit, offset int) ([]models.TierUpgradeRequest, int64, error)
}

// Store is the full data access surface. ExecuteInTransaction runs fn against a Store
// bound to one database transaction; fn's error rolls everything back.
type Store interface {
	WalletRepository
	LimitRepository
	LedgerRepository
	UserRepository
	UpgradeRepository

	ExecuteInTransaction(ctx context.Context, fn func(tx Store) error) error
}

// Package memory is an in-process Store used by tests and by DB_DRIVER=memory.
//
// Transactions are serialized behind one mutex and run against a private copy of the
// data that replaces the shared copy only when fn succeeds, so every transaction is
// all-or-nothing and the row-lock methods need no locking of their own.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
)

type shared struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
}

// Store implements repositories.Store in memory.
type Store struct {
	shared *shared
	data   *dataset
	inTx   bool
}

var _ repositories.Store = (*Store)(nil)

func New() *Store {
	return &Store{shared: &shared{data: newDataset()}}
}

func (s *Store) ExecuteInTransaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.shared.txMu.Lock()
	defer s.shared.txMu.Unlock()

	s.shared.mu.RLock()
	working := s.shared.data.clone()
	s.shared.mu.RUnlock()

	if err := fn(&Store{shared: s.shared, data: working, inTx: true}); err != nil {
		return err
	}

	s.shared.mu.Lock()
	s.shared.data = working
	s.shared.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(d *dataset) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return fn(s.shared.data)
}

func (s *Store) write(fn func(d *dataset) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.shared.txMu.Lock()
	defer s.shared.txMu.Unlock()
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return fn(s.shared.data)
}

type dataset struct {
	seq      uint
	users    map[uint]*models.User
	wallets  map[uint]*models.Wallet
	trackers map[uint]*models.LimitTracker
	entries  map[string]*models.Transaction
	upgrades map[uint]*models.TierUpgradeRequest
}

func newDataset() *dataset {
	return &dataset{
		users:    map[uint]*models.User{},
		wallets:  map[uint]*models.Wallet{},
		trackers: map[uint]*models.LimitTracker{},
		entries:  map[string]*models.Transaction{},
		upgrades: map[uint]*models.TierUpgradeRequest{},
	}
}

func (d *dataset) nextID() uint {
	d.seq++
	return d.seq
}

func (d *dataset) clone() *dataset {
	out := newDataset()
	out.seq = d.seq
	for k, v := range d.users {
		out.users[k] = copyUser(v)
	}
	for k, v := range d.wallets {
		out.wallets[k] = copyWallet(v)
	}
	for k, v := range d.trackers {
		t := *v
		out.trackers[k] = &t
	}
	for k, v := range d.entries {
		out.entries[k] = copyEntry(v)
	}
	for k, v := range d.upgrades {
		out.upgrades[k] = copyUpgrade(v)
	}
	return out
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.write(func(d *dataset) error {
		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
		for _, u := range d.users {
			if u.Email == user.Email {
				return fmt.Errorf("%w: email", repositories.ErrDuplicate)
			}
			if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
				return fmt.Errorf("%w: phone", repositories.ErrDuplicate)
			}
		}
		now := time.Now()
		user.ID = d.nextID()
		user.CreatedAt, user.UpdatedAt = now, now
		if user.Role == "" {
			user.Role = models.RoleUser
		}
		d.users[user.ID] = copyUser(user)
		return nil
	})
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var out *models.User
	err := s.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out *models.User
	err := s.read(func(d *dataset) error {
		for _, u := range d.users {
			if u.Email == email {
				out = copyUser(u)
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (s *Store) GetUserByVerificationID(ctx context.Context, verificationID string) (*models.User, error) {
	var out *models.User
	err := s.read(func(d *dataset) error {
		for _, u := range d.users {
			if u.VerificationID != nil && *u.VerificationID == verificationID {
				out = copyUser(u)
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (s *Store) SetVerificationID(ctx context.Context, userID uint, verificationID string) error {
	return s.write(func(d *dataset) error {
		u, ok := d.users[userID]
		if !ok {
			return repositories.ErrNotFound
		}
		for id, other := range d.users {
			if id != userID && other.VerificationID != nil && *other.VerificationID == verificationID {
				return fmt.Errorf("%w: verification_id", repositories.ErrDuplicate)
			}
		}
		v := verificationID
		u.VerificationID = &v
		u.UpdatedAt = time.Now()
		return nil
	})
}

// Wallets

// CreateWallet stores the wallet with the balance it carries, so tests can seed
// funded wallets directly.
func (s *Store) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.wallets[wallet.UserID]; ok {
			return fmt.Errorf("%w: wallet user_id", repositories.ErrDuplicate)
		}
		if wallet.AccountNumber != nil {
			for _, w := range d.wallets {
				if w.AccountNumber != nil && *w.AccountNumber == *wallet.AccountNumber {
					return fmt.Errorf("%w: account_number", repositories.ErrDuplicate)
				}
			}
		}
		if wallet.Tier == "" {
			wallet.Tier = models.Tier1
		}
		now := time.Now()
		wallet.ID = d.nextID()
		wallet.CreatedAt, wallet.UpdatedAt = now, now
		d.wallets[wallet.UserID] = copyWallet(wallet)
		return nil
	})
}

func (s *Store) GetWalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var out *models.Wallet
	err := s.read(func(d *dataset) error {
		w, ok := d.wallets[userID]
		if !ok {
			return repositories.ErrNotFound
		}
		out = copyWallet(w)
		return nil
	})
	return out, err
}

func (s *Store) GetWalletByAccountNumber(ctx context.Context, accountNumber string) (*models.Wallet, error) {
	var out *models.Wallet
	err := s.read(func(d *dataset) error {
		for _, w := range d.wallets {
			if w.AccountNumber != nil && *w.AccountNumber == accountNumber {
				out = copyWallet(w)
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (s *Store) LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*models.Wallet, error) {
	out := make(map[uint]*models.Wallet, len(userIDs))
	err := s.read(func(d *dataset) error {
		for _, id := range userIDs {
			w, ok := d.wallets[id]
			if !ok {
				return repositories.ErrNotFound
			}
			out[id] = copyWallet(w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.write(func(d *dataset) error {
		w, ok := d.wallets[wallet.UserID]
		if !ok || w.ID != wallet.ID {
			return repositories.ErrNotFound
		}
		if wallet.Balance.IsNegative() {
			return fmt.Errorf("wallet %d: balance check violated", wallet.ID)
		}
		w.Balance = wallet.Balance
		w.Tier = wallet.Tier
		w.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Store) AssignAccount(ctx context.Context, userID uint, account models.ReservedAccount) error {
	return s.write(func(d *dataset) error {
		w, ok := d.wallets[userID]
		if !ok {
			return repositories.ErrNotFound
		}
		if w.HasAccount() {
			return repositories.ErrAccountAssigned
		}
		for id, other := range d.wallets {
			if id == userID {
				continue
			}
			if other.AccountNumber != nil && *other.AccountNumber == account.AccountNumber {
				return fmt.Errorf("%w: account_number", repositories.ErrDuplicate)
			}
			if other.AccountReference != nil && *other.AccountReference == account.AccountReference {
				return fmt.Errorf("%w: account_reference", repositories.ErrDuplicate)
			}
		}
		number, bank, name, ref := account.AccountNumber, account.BankName, account.AccountName, account.AccountReference
		w.AccountNumber, w.BankName, w.AccountName, w.AccountReference = &number, &bank, &name, &ref
		w.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Store) ListWalletsWithoutAccount(ctx context.Context, limit int) ([]models.Wallet, error) {
	var out []models.Wallet
	err := s.read(func(d *dataset) error {
		for _, w := range d.wallets {
			if !w.HasAccount() {
				out = append(out, *copyWallet(w))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Limit trackers

func (s *Store) LockLimitTracker(ctx context.Context, userID uint, today time.Time) (*models.LimitTracker, error) {
	var out models.LimitTracker
	err := s.write(func(d *dataset) error {
		t, ok := d.trackers[userID]
		if !ok {
			t = &models.LimitTracker{ID: d.nextID(), UserID: userID, Date: today, UpdatedAt: time.Now()}
			d.trackers[userID] = t
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) GetLimitTracker(ctx context.Context, userID uint) (*models.LimitTracker, error) {
	var out models.LimitTracker
	err := s.read(func(d *dataset) error {
		t, ok := d.trackers[userID]
		if !ok {
			return repositories.ErrNotFound
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SaveLimitTracker(ctx context.Context, tracker *models.LimitTracker) error {
	return s.write(func(d *dataset) error {
		if tracker.ID == 0 {
			tracker.ID = d.nextID()
		}
		tracker.UpdatedAt = time.Now()
		t := *tracker
		d.trackers[tracker.UserID] = &t
		return nil
	})
}

// Ledger

func (s *Store) CreateTransactions(ctx context.Context, entries ...*models.Transaction) error {
	return s.write(func(d *dataset) error {
		seen := map[string]struct{}{}
		for _, e := range entries {
			if _, ok := d.entries[e.Reference]; ok {
				return fmt.Errorf("%w: reference %s", repositories.ErrDuplicate, e.Reference)
			}
			if _, ok := seen[e.Reference]; ok {
				return fmt.Errorf("%w: reference %s", repositories.ErrDuplicate, e.Reference)
			}
			if !e.Amount.IsPositive() {
				return fmt.Errorf("transaction %s: amount check violated", e.Reference)
			}
			seen[e.Reference] = struct{}{}
		}
		now := time.Now()
		for _, e := range entries {
			e.ID = d.nextID()
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			e.UpdatedAt = now
			if e.Status == "" {
				e.Status = models.StatusPending
			}
			d.entries[e.Reference] = copyEntry(e)
		}
		return nil
	})
}

func (s *Store) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.read(func(d *dataset) error {
		e, ok := d.entries[reference]
		if !ok {
			return repositories.ErrNotFound
		}
		out = copyEntry(e)
		return nil
	})
	return out, err
}

func (s *Store) LockTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.GetTransactionByReference(ctx, reference)
}

func (s *Store) SaveTransaction(ctx context.Context, entry *models.Transaction) error {
	return s.write(func(d *dataset) error {
		e, ok := d.entries[entry.Reference]
		if !ok || e.ID != entry.ID {
			return repositories.ErrNotFound
		}
		e.Status = entry.Status
		e.Fee = entry.Fee
		e.GatewayReference = entry.GatewayReference
		e.Metadata = entry.Metadata.Clone()
		e.CompletedAt = entry.CompletedAt
		e.UpdatedAt = time.Now()
		return nil
	})
}

func (s *Store) ListTransactionsByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]models.Transaction, int64, error) {
	var all []models.Transaction
	err := s.read(func(d *dataset) error {
		for _, e := range d.entries {
			if e.OwnerID == ownerID {
				all = append(all, *copyEntry(e))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, limit, offset), int64(len(all)), err
}

func (s *Store) ListStalePending(ctx context.Context, txType models.TransactionType, before time.Time, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	err := s.read(func(d *dataset) error {
		for _, e := range d.entries {
			if e.Status == models.StatusPending && e.Type == txType && e.CreatedAt.Before(before) {
				out = append(out, *copyEntry(e))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), err
}

// Upgrade requests

func (s *Store) CreateUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error {
	return s.write(func(d *dataset) error {
		if req.Status == "" {
			req.Status = models.UpgradePending
		}
		if req.Status == models.UpgradePending {
			for _, r := range d.upgrades {
				if !r.IsPending() {
					continue
				}
				if r.UserID == req.UserID {
					return &repositories.DuplicateError{Op: "create upgrade request", Constraint: repositories.IndexPendingUpgradeUser}
				}
				if req.VerificationID != nil && r.VerificationID != nil && *r.VerificationID == *req.VerificationID {
					return &repositories.DuplicateError{Op: "create upgrade request", Constraint: repositories.IndexPendingUpgradeVerification}
				}
			}
		}
		req.ID = d.nextID()
		if req.SubmittedAt.IsZero() {
			req.SubmittedAt = time.Now()
		}
		d.upgrades[req.ID] = copyUpgrade(req)
		return nil
	})
}

func (s *Store) GetPendingUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error) {
	return s.findUpgrade(func(r *models.TierUpgradeRequest) bool {
		return r.UserID == userID && r.IsPending()
	})
}

func (s *Store) GetLatestUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error) {
	var out *models.TierUpgradeRequest
	err := s.read(func(d *dataset) error {
		for _, r := range d.upgrades {
			if r.UserID != userID {
				continue
			}
			if out == nil || r.ID > out.ID {
				out = copyUpgrade(r)
			}
		}
		if out == nil {
			return repositories.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (s *Store) FindPendingUpgradeByVerificationID(ctx context.Context, verificationID string) (*models.TierUpgradeRequest, error) {
	return s.findUpgrade(func(r *models.TierUpgradeRequest) bool {
		return r.IsPending() && r.VerificationID != nil && *r.VerificationID == verificationID
	})
}

func (s *Store) LockUpgradeRequest(ctx context.Context, id uint) (*models.TierUpgradeRequest, error) {
	var out *models.TierUpgradeRequest
	err := s.read(func(d *dataset) error {
		r, ok := d.upgrades[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = copyUpgrade(r)
		return nil
	})
	return out, err
}

func (s *Store) SaveUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error {
	return s.write(func(d *dataset) error {
		if _, ok := d.upgrades[req.ID]; !ok {
			return repositories.ErrNotFound
		}
		d.upgrades[req.ID] = copyUpgrade(req)
		return nil
	})
}

func (s *Store) ListUpgradeRequests(ctx context.Context, status models.UpgradeStatus, limit, offset int) ([]models.TierUpgradeRequest, int64, error) {
	var all []models.TierUpgradeRequest
	err := s.read(func(d *dataset) error {
		for _, r := range d.upgrades {
			if status == "" || r.Status == status {
				all = append(all, *copyUpgrade(r))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, limit, offset), int64(len(all)), err
}

func (s *Store) findUpgrade(match func(r *models.TierUpgradeRequest) bool) (*models.TierUpgradeRequest, error) {
	var out *models.TierUpgradeRequest
	err := s.read(func(d *dataset) error {
		for _, r := range d.upgrades {
			if match(r) {
				out = copyUpgrade(r)
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

package repositories

import (
	"context"
	"sort"

	"ledgerpay/internal/models"
)

func (s *GormStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return translate("failed to create wallet", s.conn(ctx).Create(wallet).Error)
}

func (s *GormStore) GetWalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translate("failed to get wallet", err)
	}
	return &wallet, nil
}

func (s *GormStore) GetWalletByAccountNumber(ctx context.Context, accountNumber string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.conn(ctx).Where("account_number = ?", accountNumber).First(&wallet).Error; err != nil {
		return nil, translate("failed to get wallet by account", err)
	}
	return &wallet, nil
}

func (s *GormStore) LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*models.Wallet, error) {
	ids := uniqueSorted(userIDs)
	wallets := make(map[uint]*models.Wallet, len(ids))
	for _, id := range ids {
		var wallet models.Wallet
		if err := s.forUpdate(ctx).Where("user_id = ?", id).First(&wallet).Error; err != nil {
			return nil, translate("failed to lock wallet", err)
		}
		wallets[id] = &wallet
	}
	return wallets, nil
}

func (s *GormStore) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	result := s.conn(ctx).Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]interface{}{
			"balance": wallet.Balance,
			"tier":    wallet.Tier,
		})
	if result.Error != nil {
		return translate("failed to update wallet", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AssignAccount(ctx context.Context, userID uint, account models.ReservedAccount) error {
	result := s.conn(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND account_number IS NULL", userID).
		Updates(map[string]interface{}{
			"account_number":    account.AccountNumber,
			"bank_name":         account.BankName,
			"account_name":      account.AccountName,
			"account_reference": account.AccountReference,
		})
	if result.Error != nil {
		return translate("failed to assign account", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetWalletByUserID(ctx, userID); err != nil {
			return err
		}
		return ErrAccountAssigned
	}
	return nil
}

func (s *GormStore) ListWalletsWithoutAccount(ctx context.Context, limit int) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.conn(ctx).Where("account_number IS NULL").Order("user_id ASC").Limit(limit).Find(&wallets).Error
	if err != nil {
		return nil, translate("failed to list unprovisioned wallets", err)
	}
	return wallets, nil
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

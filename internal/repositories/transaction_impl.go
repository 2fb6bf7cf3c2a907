package repositories

import (
	"context"
	"time"

	"ledgerpay/internal/models"
)

func (s *GormStore) CreateTransactions(ctx context.Context, entries ...*models.Transaction) error {
	if len(entries) == 0 {
		return nil
	}
	return translate("failed to create transaction", s.conn(ctx).Create(entries).Error)
}

func (s *GormStore) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var entry models.Transaction
	if err := s.conn(ctx).Where("reference = ?", reference).First(&entry).Error; err != nil {
		return nil, translate("failed to get transaction", err)
	}
	return &entry, nil
}

func (s *GormStore) LockTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var entry models.Transaction
	if err := s.forUpdate(ctx).Where("reference = ?", reference).First(&entry).Error; err != nil {
		return nil, translate("failed to lock transaction", err)
	}
	return &entry, nil
}

// SaveTransaction writes the mutable columns of an entry. Reference, owner, amount
// and snapshots are never rewritten.
func (s *GormStore) SaveTransaction(ctx context.Context, entry *models.Transaction) error {
	result := s.conn(ctx).Model(&models.Transaction{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"status":            entry.Status,
			"fee":               entry.Fee,
			"gateway_reference": entry.GatewayReference,
			"metadata":          entry.Metadata,
			"completed_at":      entry.CompletedAt,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return translate("failed to update transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListTransactionsByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]models.Transaction, int64, error) {
	var total int64
	query := s.conn(ctx).Model(&models.Transaction{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate("failed to count transactions", err)
	}

	var entries []models.Transaction
	err := s.conn(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, translate("failed to list transactions", err)
	}
	return entries, total, nil
}

func (s *GormStore) ListStalePending(ctx context.Context, txType models.TransactionType, before time.Time, limit int) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := s.conn(ctx).
		Where("status = ? AND type = ? AND created_at < ?", models.StatusPending, txType, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, translate("failed to list pending transactions", err)
	}
	return entries, nil
}

// Package ledger builds ledger references and serves the read side of the ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"

	"github.com/google/uuid"
)

const (
	TransferPrefix = "TRF"
	FundingPrefix  = "FND"
	creditSuffix   = "-CR"

	MaxPageSize = 100
)

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewTransferReference returns a fresh base reference for a transfer by userID.
func NewTransferReference(userID uint) string {
	return fmt.Sprintf("%s-%d-%s", TransferPrefix, userID, shortID())
}

// NewFundingReference returns a fresh payment reference for a wallet funding.
func NewFundingReference(userID uint) string {
	return fmt.Sprintf("%s-%d-%s", FundingPrefix, userID, shortID())
}

// CreditReference derives the reference of the credit side of an internal transfer.
func CreditReference(base string) string {
	return base + creditSuffix
}

// Service reads ledger entries on behalf of their owner.
type Service struct {
	repo repositories.LedgerRepository
}

func NewService(repo repositories.LedgerRepository) *Service {
	return &Service{repo: repo}
}

// List returns the owner's entries newest first.
func (s *Service) List(ctx context.Context, ownerID uint, limit, offset int) ([]models.Transaction, int64, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.ListTransactionsByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return items, total, nil
}

// Get returns one entry. Entries owned by someone else are reported as missing.
func (s *Service) Get(ctx context.Context, ownerID uint, reference string) (*models.Transaction, error) {
	entry, err := s.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	if entry.OwnerID != ownerID {
		return nil, apperrors.ErrTransactionNotFound
	}
	return entry, nil
}

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "Deposit"
	TransactionTypeDebit   TransactionType = "Debit"
	TransactionTypeCredit  TransactionType = "Credit"
)

type TransferType string

const (
	TransferInternal TransferType = "internal"
	TransferExternal TransferType = "external"
)

func (t TransferType) Valid() bool {
	return t == TransferInternal || t == TransferExternal
}

type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// ErrInvalidTransition is returned when a status change would leave a terminal state
// or skip pending.
var ErrInvalidTransition = errors.New("invalid transaction status transition")

// Transaction is one ledger entry. Counterparty names and accounts are snapshots taken
// at creation and are never refreshed from the live user or wallet rows.
type Transaction struct {
	ID               uint              `gorm:"primarykey" json:"id"`
	Reference        string            `gorm:"uniqueIndex;size:100;not null" json:"reference"`
	PairReference    *string           `gorm:"index;size:100" json:"pair_reference,omitempty"`
	OwnerID          uint              `gorm:"index;not null" json:"owner_id"`
	CounterpartyID   *uint             `json:"counterparty_id,omitempty"`
	SenderName       string            `gorm:"size:150" json:"sender_name"`
	SenderAccount    string            `gorm:"size:20" json:"sender_account"`
	RecipientName    string            `gorm:"size:150" json:"recipient_name"`
	RecipientAccount string            `gorm:"size:20" json:"recipient_account"`
	RecipientBank    string            `gorm:"size:100" json:"recipient_bank"`
	Amount           decimal.Decimal   `gorm:"type:numeric(14,2);not null;check:amount > 0" json:"amount"`
	Fee              decimal.Decimal   `gorm:"type:numeric(14,2);not null;default:0" json:"fee"`
	Type             TransactionType   `gorm:"type:varchar(10);not null" json:"type"`
	TransferType     TransferType      `gorm:"type:varchar(10)" json:"transfer_type,omitempty"`
	Status           TransactionStatus `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	Description      string            `json:"description"`
	GatewayReference string            `gorm:"size:100" json:"gateway_reference,omitempty"`
	Metadata         JSON              `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the entry has left pending.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// Transition moves a pending entry to success or failed.
func (t *Transaction) Transition(to TransactionStatus, at time.Time) error {
	if t.Status != StatusPending || (to != StatusSuccess && to != StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.CompletedAt = &at
	return nil
}

// SetMeta records a key on the metadata column, allocating it on first use.
func (t *Transaction) SetMeta(key string, value interface{}) {
	if t.Metadata == nil {
		t.Metadata = JSON{}
	}
	t.Metadata[key] = value
}

// IsExternalDebit reports whether the entry is the pending side of a bank disbursement.
func (t *Transaction) IsExternalDebit() bool {
	return t.Type == TransactionTypeDebit && t.TransferType == TransferExternal
}

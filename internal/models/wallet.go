package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tier bounds what a wallet may hold and move per day.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case Tier1, Tier2, Tier3:
		return true
	}
	return false
}

// Wallet is a user's balance plus its binding to a gateway reserved account.
// The account fields are nil until provisioning succeeds and never change afterwards.
type Wallet struct {
	ID               uint            `gorm:"primarykey" json:"id"`
	UserID           uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0;check:balance >= 0" json:"balance"`
	Tier             Tier            `gorm:"type:varchar(10);not null;default:'tier1'" json:"tier"`
	AccountNumber    *string         `gorm:"uniqueIndex;size:20" json:"account_number"`
	BankName         *string         `gorm:"size:100" json:"bank_name"`
	AccountName      *string         `gorm:"size:150" json:"account_name"`
	AccountReference *string         `gorm:"uniqueIndex;size:100" json:"account_reference"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// New wallets always start empty on the lowest tier.
	w.Balance = decimal.Zero
	if w.Tier == "" {
		w.Tier = Tier1
	}
	return nil
}

// HasAccount reports whether a reserved account has been assigned.
func (w *Wallet) HasAccount() bool {
	return w.AccountNumber != nil && *w.AccountNumber != ""
}

// ReservedAccount is the set of identifiers assigned to a wallet once.
type ReservedAccount struct {
	AccountNumber    string
	BankName         string
	AccountName      string
	AccountReference string
}

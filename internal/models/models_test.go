package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_Transition(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		from    TransactionStatus
		to      TransactionStatus
		wantErr bool
	}{
		{"pending to success", StatusPending, StatusSuccess, false},
		{"pending to failed", StatusPending, StatusFailed, false},
		{"pending to pending", StatusPending, StatusPending, true},
		{"success to failed", StatusSuccess, StatusFailed, true},
		{"failed to success", StatusFailed, StatusSuccess, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Status: tt.from}
			err := tx.Transition(tt.to, now)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, tx.Status)
				assert.Nil(t, tx.CompletedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, tx.Status)
			assert.True(t, tx.IsTerminal())
			require.NotNil(t, tx.CompletedAt)
		})
	}
}

func TestTransaction_SetMeta(t *testing.T) {
	tx := &Transaction{}
	tx.SetMeta("amount_paid", "2000")
	assert.Equal(t, "2000", tx.Metadata["amount_paid"])
}

func TestTier_Valid(t *testing.T) {
	assert.True(t, Tier1.Valid())
	assert.True(t, Tier3.Valid())
	assert.False(t, Tier("tier4").Valid())
}

func TestUserClaims_HasPermission(t *testing.T) {
	claims := &UserClaims{Permissions: GetDefaultPermissions(RoleUser)}
	assert.True(t, claims.HasPermission(PermissionWalletWrite))
	assert.False(t, claims.HasPermission(PermissionUpgradeReview))
}

func TestUser_FullName(t *testing.T) {
	u := &User{FirstName: "Ada", LastName: "Obi"}
	assert.Equal(t, "Ada Obi", u.FullName())
}

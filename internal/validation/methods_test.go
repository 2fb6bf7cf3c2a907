package validation

import (
	"testing"

	apperrors "ledgerpay/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CollectsFirstErrorPerField(t *testing.T) {
	v := New()
	v.Required("email", "  ")
	v.Email("email", "")
	v.Phone("phone", "12ab")

	require.False(t, v.Valid())
	assert.Equal(t, "must not be empty", v.Errors["email"])
	assert.Equal(t, "must be a valid phone number", v.Errors["phone"])

	err := v.Err()
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	de, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, v.Errors, de.Details)
}

func TestValidator_Password(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"strong", "Secr3t!pass", true},
		{"too short", "S3t!a", false},
		{"no upper", "secr3t!pass", false},
		{"no number", "Secret!pass", false},
		{"no special", "Secr3tpass", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Password("password", tt.password)
			assert.Equal(t, tt.valid, v.Valid(), v.Errors)
		})
	}
}

func TestValidator_ValidHasNoError(t *testing.T) {
	v := New()
	v.Email("email", "ada@example.com")
	v.Phone("phone", "+2348012345678")
	assert.NoError(t, v.Err())
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesCode(t *testing.T) {
	derived := ErrLimitExceeded.WithMessage("daily outflow limit of %s exceeded", "20000")
	wrapped := fmt.Errorf("transfer: %w", derived)

	assert.True(t, stderrors.Is(wrapped, ErrLimitExceeded))
	assert.False(t, stderrors.Is(wrapped, ErrBalanceCapExceeded))
	assert.Equal(t, "daily outflow limit of 20000 exceeded", derived.Error())
	assert.Equal(t, "daily limit exceeded", ErrLimitExceeded.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("x: %w", NotFound("account not found"))))
	assert.Equal(t, KindConflict, KindOf(ErrUpgradePending))
	assert.Equal(t, Kind(0), KindOf(stderrors.New("boom")))
	assert.Equal(t, "limit_exceeded", KindLimitExceeded.String())
}

func TestWithDetails(t *testing.T) {
	err := Validation("invalid request").WithDetails(map[string]string{"amount": "required"})
	de, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindValidation, de.Kind)
	assert.Equal(t, map[string]string{"amount": "required"}, de.Details)
	assert.Nil(t, ErrValidation.Details)
}

// Package errors defines the domain error taxonomy shared by services and handlers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a DomainError for transport mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindInsufficientFunds
	KindLimitExceeded
	KindBalanceCapExceeded
	KindNotFound
	KindConflict
	KindGateway
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindBalanceCapExceeded:
		return "balance_cap_exceeded"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// DomainError is a business-rule failure whose message is safe to show to clients.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so that wrapped or re-messaged copies still compare equal to
// the sentinel they were derived from.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *DomainError) WithMessage(format string, args ...interface{}) *DomainError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithDetails returns a copy of e carrying structured details.
func (e *DomainError) WithDetails(details interface{}) *DomainError {
	cp := *e
	cp.Details = details
	return &cp
}

// Validation builds a field-level validation failure.
func Validation(message string) *DomainError {
	return ErrValidation.WithMessage("%s", message)
}

// NotFound builds a NotFound error naming the missing entity.
func NotFound(message string) *DomainError {
	return ErrNotFound.WithMessage("%s", message)
}

// Conflict builds a Conflict error.
func Conflict(message string) *DomainError {
	return ErrConflict.WithMessage("%s", message)
}

// As extracts the DomainError in err's chain, if any.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of the DomainError in err's chain, or 0.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return 0
}

package gateway

import (
	"errors"
	"fmt"
)

// GatewayError is a non-successful answer from the payment gateway.
type GatewayError struct {
	StatusCode int
	Message    string
	Body       map[string]interface{}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Message)
}

// Rejected reports whether the gateway definitively refused the request, as opposed to
// failing in a way where the outcome is unknown.
func (e *GatewayError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsRejection reports whether err carries a gateway 4xx answer.
func IsRejection(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Rejected()
}

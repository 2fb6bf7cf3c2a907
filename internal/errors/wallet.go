package errors

var (
	ErrValidation = &DomainError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: "invalid request",
	}
	ErrInvalidAmount = &DomainError{
		Kind:    KindValidation,
		Code:    "INVALID_AMOUNT",
		Message: "invalid amount",
	}
	ErrSelfTransfer = &DomainError{
		Kind:    KindValidation,
		Code:    "SELF_TRANSFER",
		Message: "cannot transfer to self",
	}
	ErrBankNotFound = &DomainError{
		Kind:    KindValidation,
		Code:    "BANK_NOT_FOUND",
		Message: "Bank code not found",
	}
	ErrInsufficientBalance = &DomainError{
		Kind:    KindInsufficientFunds,
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
	}
	ErrLimitExceeded = &DomainError{
		Kind:    KindLimitExceeded,
		Code:    "DAILY_LIMIT_EXCEEDED",
		Message: "daily limit exceeded",
	}
	ErrBalanceCapExceeded = &DomainError{
		Kind:    KindBalanceCapExceeded,
		Code:    "BALANCE_CAP_EXCEEDED",
		Message: "recipient balance limit exceeded",
	}
	ErrNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: "not found",
	}
	ErrWalletNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrTransactionNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "TRANSACTION_NOT_FOUND",
		Message: "transaction not found",
	}
	ErrConflict = &DomainError{
		Kind:    KindConflict,
		Code:    "CONFLICT",
		Message: "conflicting request",
	}
	ErrGateway = &DomainError{
		Kind:    KindGateway,
		Code:    "GATEWAY_ERROR",
		Message: "payment gateway error",
	}
	ErrGatewayRejected = &DomainError{
		Kind:    KindGateway,
		Code:    "GATEWAY_REJECTED",
		Message: "payment gateway rejected the request",
	}
)

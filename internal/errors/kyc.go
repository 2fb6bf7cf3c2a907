package errors

var (
	ErrUpgradePending = &DomainError{
		Kind:    KindConflict,
		Code:    "UPGRADE_PENDING",
		Message: "you already have a pending upgrade request",
	}
	ErrAlreadyMaxTier = &DomainError{
		Kind:    KindValidation,
		Code:    "ALREADY_MAX_TIER",
		Message: "already at tier3, no further upgrade available",
	}
	ErrVerificationIDTaken = &DomainError{
		Kind:    KindValidation,
		Code:    "VERIFICATION_ID_TAKEN",
		Message: "verification id is already linked to another account",
	}
	ErrUpgradeReviewed = &DomainError{
		Kind:    KindConflict,
		Code:    "UPGRADE_ALREADY_REVIEWED",
		Message: "upgrade request has already been reviewed",
	}
	ErrUpgradeStale = &DomainError{
		Kind:    KindConflict,
		Code:    "UPGRADE_STALE",
		Message: "wallet tier changed since the request was submitted",
	}
	ErrUpgradeNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "UPGRADE_NOT_FOUND",
		Message: "upgrade request not found",
	}
)

package models

// Permission constants
const (
	// Wallet permissions
	PermissionWalletRead  = "wallet:read"
	PermissionWalletWrite = "wallet:write"

	// Transaction permissions
	PermissionTransactionRead  = "transaction:read"
	PermissionTransactionWrite = "transaction:write"

	// KYC permissions
	PermissionUpgradeSubmit = "kyc:upgrade"

	// Admin permissions
	PermissionReadAdmin     = "admin:read"
	PermissionUpgradeReview = "admin:upgrade-review"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionReadAdmin,
			PermissionUpgradeReview,
			PermissionWalletRead,
			PermissionTransactionRead,
		}
	case RoleUser:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionTransactionRead,
			PermissionTransactionWrite,
			PermissionUpgradeSubmit,
		}
	default:
		return []string{}
	}
}

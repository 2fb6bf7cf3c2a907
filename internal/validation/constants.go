package validation

const (
	// bcrypt ignores everything past 72 bytes.
	MinPasswordLength = 8
	MaxPasswordLength = 72

	MaxNameLength        = 100
	MaxDescriptionLength = 255
)

package models

import (
	"time"

	"github.com/lib/pq"
)

type UpgradeStatus string

const (
	UpgradePending  UpgradeStatus = "pending"
	UpgradeApproved UpgradeStatus = "approved"
	UpgradeRejected UpgradeStatus = "rejected"
)

// TierUpgradeRequest is a user's request to move one tier up. Partial unique indexes
// allow a single pending request per user and per verification id.
type TierUpgradeRequest struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	UserID          uint           `gorm:"not null;index;index:idx_upgrade_pending_user,unique,where:status = 'pending'" json:"user_id"`
	CurrentTier     Tier           `gorm:"type:varchar(10);not null" json:"current_tier"`
	RequestedTier   Tier           `gorm:"type:varchar(10);not null" json:"requested_tier"`
	Status          UpgradeStatus  `gorm:"type:varchar(10);not null;default:'pending';index" json:"status"`
	VerificationID  *string        `gorm:"size:11;index;index:idx_upgrade_pending_verification,unique,where:status = 'pending'" json:"verification_id,omitempty"`
	DocumentType    string         `gorm:"size:30" json:"document_type,omitempty"`
	Documents       pq.StringArray `gorm:"type:text[]" json:"documents"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	ReviewerID      *uint          `json:"reviewer_id,omitempty"`
	SubmittedAt     time.Time      `gorm:"not null" json:"submitted_at"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
}

func (r *TierUpgradeRequest) IsPending() bool {
	return r.Status == UpgradePending
}

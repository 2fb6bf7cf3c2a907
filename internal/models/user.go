package models

import (
	"strings"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	gorm.Model
	FirstName      string        `gorm:"not null" json:"first_name"`
	LastName       string        `gorm:"not null" json:"last_name"`
	Email          string        `gorm:"uniqueIndex;not null" json:"email"`
	Phone          *string       `gorm:"uniqueIndex" json:"phone,omitempty"`
	Password       string        `gorm:"not null" json:"-"`
	Role           string        `gorm:"default:'user'" json:"role"`
	VerificationID *string       `gorm:"uniqueIndex;size:11" json:"-"`
	Wallet         *Wallet       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"wallet,omitempty"`
	LimitTracker   *LimitTracker `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// FullName is the display name snapshotted onto ledger entries.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitTracker counts a user's money movement for a single calendar day.
type LimitTracker struct {
	ID           uint            `gorm:"primarykey" json:"-"`
	UserID       uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Date         time.Time       `gorm:"type:date;not null" json:"date"`
	DailyInflow  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"daily_inflow"`
	DailyOutflow decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"daily_outflow"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

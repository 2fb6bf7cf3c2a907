package repositories

import (
	"context"
	"time"

	"ledgerpay/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func (s *GormStore) LockLimitTracker(ctx context.Context, userID uint, today time.Time) (*models.LimitTracker, error) {
	seed := models.LimitTracker{
		UserID:       userID,
		Date:         today,
		DailyInflow:  decimal.Zero,
		DailyOutflow: decimal.Zero,
	}
	err := s.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, translate("failed to create limit tracker", err)
	}

	var tracker models.LimitTracker
	if err := s.forUpdate(ctx).Where("user_id = ?", userID).First(&tracker).Error; err != nil {
		return nil, translate("failed to lock limit tracker", err)
	}
	return &tracker, nil
}

func (s *GormStore) GetLimitTracker(ctx context.Context, userID uint) (*models.LimitTracker, error) {
	var tracker models.LimitTracker
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&tracker).Error; err != nil {
		return nil, translate("failed to get limit tracker", err)
	}
	return &tracker, nil
}

func (s *GormStore) SaveLimitTracker(ctx context.Context, tracker *models.LimitTracker) error {
	return translate("failed to save limit tracker", s.conn(ctx).Save(tracker).Error)
}

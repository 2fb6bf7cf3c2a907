package repositories

import (
	"context"
	"strings"

	"ledgerpay/internal/models"
)

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return translate("failed to create user", s.conn(ctx).Create(user).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, translate("failed to get user", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate("failed to get user by email", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByVerificationID(ctx context.Context, verificationID string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("verification_id = ?", verificationID).First(&user).Error; err != nil {
		return nil, translate("failed to get user by verification id", err)
	}
	return &user, nil
}

func (s *GormStore) SetVerificationID(ctx context.Context, userID uint, verificationID string) error {
	result := s.conn(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("verification_id", verificationID)
	if result.Error != nil {
		return translate("failed to set verification id", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

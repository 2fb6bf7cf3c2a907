package repositories

import (
	"context"

	"ledgerpay/internal/models"
)

func (s *GormStore) CreateUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error {
	return translate("failed to create upgrade request", s.conn(ctx).Create(req).Error)
}

func (s *GormStore) GetPendingUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error) {
	var req models.TierUpgradeRequest
	err := s.conn(ctx).Where("user_id = ? AND status = ?", userID, models.UpgradePending).First(&req).Error
	if err != nil {
		return nil, translate("failed to get pending upgrade", err)
	}
	return &req, nil
}

func (s *GormStore) GetLatestUpgrade(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error) {
	var req models.TierUpgradeRequest
	err := s.conn(ctx).Where("user_id = ?", userID).Order("submitted_at DESC, id DESC").First(&req).Error
	if err != nil {
		return nil, translate("failed to get latest upgrade", err)
	}
	return &req, nil
}

func (s *GormStore) FindPendingUpgradeByVerificationID(ctx context.Context, verificationID string) (*models.TierUpgradeRequest, error) {
	var req models.TierUpgradeRequest
	err := s.conn(ctx).
		Where("verification_id = ? AND status = ?", verificationID, models.UpgradePending).
		First(&req).Error
	if err != nil {
		return nil, translate("failed to find upgrade by verification id", err)
	}
	return &req, nil
}

func (s *GormStore) LockUpgradeRequest(ctx context.Context, id uint) (*models.TierUpgradeRequest, error) {
	var req models.TierUpgradeRequest
	if err := s.forUpdate(ctx).First(&req, id).Error; err != nil {
		return nil, translate("failed to lock upgrade request", err)
	}
	return &req, nil
}

func (s *GormStore) SaveUpgradeRequest(ctx context.Context, req *models.TierUpgradeRequest) error {
	return translate("failed to save upgrade request", s.conn(ctx).Save(req).Error)
}

func (s *GormStore) ListUpgradeRequests(ctx context.Context, status models.UpgradeStatus, limit, offset int) ([]models.TierUpgradeRequest, int64, error) {
	query := s.conn(ctx).Model(&models.TierUpgradeRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate("failed to count upgrade requests", err)
	}

	var reqs []models.TierUpgradeRequest
	list := s.conn(ctx).Order("submitted_at DESC, id DESC").Limit(limit).Offset(offset)
	if status != "" {
		list = list.Where("status = ?", status)
	}
	if err := list.Find(&reqs).Error; err != nil {
		return nil, 0, translate("failed to list upgrade requests", err)
	}
	return reqs, total, nil
}

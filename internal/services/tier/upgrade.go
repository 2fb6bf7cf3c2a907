package tier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/notification"
)

type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// Accepted identity document kinds for a tier3 request.
var DocumentTypes = map[string]bool{
	"nin":             true,
	"passport":        true,
	"drivers_license": true,
	"voters_card":     true,
}

var verificationIDPattern = regexp.MustCompile(`^[0-9]{11}$`)

// Submission is the user-supplied evidence. Which fields are required depends on the
// tier being requested.
type Submission struct {
	VerificationID string   `json:"verification_id"`
	DocumentType   string   `json:"document_type"`
	Documents      []string `json:"documents"`
}

// WalletInvalidator drops cached wallet views once a tier change commits.
type WalletInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint)
}

type Service struct {
	store    repositories.Store
	notifier notification.Notifier
	wallets  WalletInvalidator
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store repositories.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	if store == nil {
		panic("store is required")
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// WithWalletCache registers the cache to invalidate after an approval.
func (s *Service) WithWalletCache(w WalletInvalidator) *Service {
	s.wallets = w
	return s
}

// Submit opens an upgrade request to the next tier after the wallet's current one.
func (s *Service) Submit(ctx context.Context, userID uint, sub Submission) (*models.TierUpgradeRequest, error) {
	var created *models.TierUpgradeRequest
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		// The wallet lock serializes concurrent submissions for the same user.
		wallets, err := tx.LockWallets(ctx, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrWalletNotFound
			}
			return err
		}
		wallet := wallets[userID]

		if _, err := tx.GetPendingUpgrade(ctx, userID); err == nil {
			return apperrors.ErrUpgradePending
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		target, err := Next(wallet.Tier)
		if err != nil {
			return err
		}

		req := &models.TierUpgradeRequest{
			UserID:        userID,
			CurrentTier:   wallet.Tier,
			RequestedTier: target,
			Status:        models.UpgradePending,
			SubmittedAt:   s.now().UTC(),
		}

		switch target {
		case models.Tier2:
			vid, err := s.checkVerificationID(ctx, tx, userID, sub.VerificationID)
			if err != nil {
				return err
			}
			req.VerificationID = &vid
		case models.Tier3:
			docType, docs, err := checkDocuments(sub)
			if err != nil {
				return err
			}
			req.DocumentType = docType
			req.Documents = docs
		}

		if err := tx.CreateUpgradeRequest(ctx, req); err != nil {
			switch {
			case repositories.ViolatesIndex(err, repositories.IndexPendingUpgradeVerification):
				return apperrors.ErrVerificationIDTaken
			case errors.Is(err, repositories.ErrDuplicate):
				return apperrors.ErrUpgradePending
			}
			return fmt.Errorf("failed to create upgrade request: %w", err)
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tier upgrade submitted", "user_id", userID, "request_id", created.ID,
		"from", created.CurrentTier, "to", created.RequestedTier)
	return created, nil
}

func (s *Service) checkVerificationID(ctx context.Context, tx repositories.Store, userID uint, raw string) (string, error) {
	vid := strings.TrimSpace(raw)
	if vid == "" {
		return "", apperrors.Validation("verification_id is required for tier2")
	}
	if !verificationIDPattern.MatchString(vid) {
		return "", apperrors.Validation("verification_id must be exactly 11 digits")
	}

	owner, err := tx.GetUserByVerificationID(ctx, vid)
	switch {
	case err == nil && owner.ID != userID:
		return "", apperrors.ErrVerificationIDTaken
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return "", err
	}

	other, err := tx.FindPendingUpgradeByVerificationID(ctx, vid)
	switch {
	case err == nil && other.UserID != userID:
		return "", apperrors.ErrVerificationIDTaken
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return "", err
	}
	return vid, nil
}

func checkDocuments(sub Submission) (string, []string, error) {
	docType := strings.ToLower(strings.TrimSpace(sub.DocumentType))
	if docType == "" {
		return "", nil, apperrors.Validation("document_type is required for tier3")
	}
	if !DocumentTypes[docType] {
		return "", nil, apperrors.Validation("unsupported document_type")
	}
	if len(sub.Documents) != 2 {
		return "", nil, apperrors.Validation("tier3 requires exactly two documents")
	}
	docs := make([]string, 0, 2)
	for _, raw := range sub.Documents {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", nil, apperrors.Validation("documents must be http(s) URLs")
		}
		docs = append(docs, u.String())
	}
	return docType, docs, nil
}

// Review approves or rejects a pending request. Approval applies the requested tier
// to the wallet in the same transaction.
func (s *Service) Review(ctx context.Context, reviewerID, requestID uint, action ReviewAction, reason string) (*models.TierUpgradeRequest, error) {
	reason = strings.TrimSpace(reason)
	switch action {
	case ActionApprove:
	case ActionReject:
		if reason == "" {
			return nil, apperrors.Validation("reason is required when rejecting")
		}
	default:
		return nil, apperrors.Validation("action must be approve or reject")
	}

	var reviewed *models.TierUpgradeRequest
	err := s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		req, err := tx.LockUpgradeRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrUpgradeNotFound
			}
			return err
		}
		if !req.IsPending() {
			return apperrors.ErrUpgradeReviewed
		}

		now := s.now().UTC()
		req.ReviewerID = &reviewerID
		req.ReviewedAt = &now

		if action == ActionReject {
			req.Status = models.UpgradeRejected
			req.RejectionReason = reason
		} else {
			if err := s.apply(ctx, tx, req); err != nil {
				return err
			}
			req.Status = models.UpgradeApproved
		}

		if err := tx.SaveUpgradeRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to save upgrade request: %w", err)
		}
		reviewed = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tier upgrade reviewed", "request_id", reviewed.ID, "user_id", reviewed.UserID,
		"status", reviewed.Status, "reviewer_id", reviewerID)
	if reviewed.Status == models.UpgradeApproved && s.wallets != nil {
		s.wallets.Invalidate(ctx, reviewed.UserID)
	}
	s.notifyReview(ctx, reviewed)
	return reviewed, nil
}

func (s *Service) apply(ctx context.Context, tx repositories.Store, req *models.TierUpgradeRequest) error {
	wallets, err := tx.LockWallets(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.ErrWalletNotFound
		}
		return err
	}
	wallet := wallets[req.UserID]
	if wallet.Tier != req.CurrentTier {
		return apperrors.ErrUpgradeStale
	}
	wallet.Tier = req.RequestedTier
	if err := tx.UpdateWallet(ctx, wallet); err != nil {
		return fmt.Errorf("failed to apply tier: %w", err)
	}

	if req.VerificationID == nil {
		return nil
	}
	user, err := tx.GetUserByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	if user.VerificationID != nil {
		return nil
	}
	if err := tx.SetVerificationID(ctx, req.UserID, *req.VerificationID); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return apperrors.ErrVerificationIDTaken
		}
		return err
	}
	return nil
}

func (s *Service) notifyReview(ctx context.Context, req *models.TierUpgradeRequest) {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		s.logger.Warn("upgrade notification skipped", "user_id", req.UserID, "error", err)
		return
	}
	msg := fmt.Sprintf("Your upgrade to %s has been approved.", req.RequestedTier)
	if req.Status == models.UpgradeRejected {
		msg = fmt.Sprintf("Your upgrade to %s was rejected: %s", req.RequestedTier, req.RejectionReason)
	}
	s.notifier.Notify(ctx, user.Email, msg)
}

// List returns requests filtered by status, newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status models.UpgradeStatus, limit, offset int) ([]models.TierUpgradeRequest, int64, error) {
	switch status {
	case "", models.UpgradePending, models.UpgradeApproved, models.UpgradeRejected:
	default:
		return nil, 0, apperrors.Validation("status must be pending, approved or rejected")
	}
	return s.store.ListUpgradeRequests(ctx, status, limit, offset)
}

// Latest returns the user's most recent request.
func (s *Service) Latest(ctx context.Context, userID uint) (*models.TierUpgradeRequest, error) {
	req, err := s.store.GetLatestUpgrade(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrUpgradeNotFound
		}
		return nil, err
	}
	return req, nil
}

package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/repositories/cache"
	"ledgerpay/internal/services/limits"
	"ledgerpay/internal/services/tier"

	"github.com/shopspring/decimal"
)

const (
	cacheName = "wallet_view"

	// Short enough that a stale day rollover is not visible for long.
	defaultTTL = time.Minute
)

// Account is the reserved bank account a wallet is funded through.
type Account struct {
	Number    string `json:"account_number"`
	BankName  string `json:"bank_name"`
	Name      string `json:"account_name"`
	Reference string `json:"account_reference"`
}

// Usage is the day's movement against the tier caps.
type Usage struct {
	Date              string          `json:"date"`
	Inflow            decimal.Decimal `json:"daily_inflow"`
	Outflow           decimal.Decimal `json:"daily_outflow"`
	RemainingInflow   decimal.Decimal `json:"remaining_inflow"`
	RemainingOutflow  decimal.Decimal `json:"remaining_outflow"`
	RemainingHeadroom decimal.Decimal `json:"remaining_balance_headroom"`
}

type View struct {
	UserID  uint            `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Tier    models.Tier     `json:"tier"`
	Limits  tier.Rules      `json:"limits"`
	Today   Usage           `json:"today"`
	Account *Account        `json:"account"`
}

type Service struct {
	store   repositories.Store
	tracker *limits.Tracker
	cache   cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
	ttl     time.Duration
}

// NewService builds the read service. A nil cache disables caching.
func NewService(store repositories.Store, tracker *limits.Tracker, c cache.Cache, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if store == nil {
		panic("store is required")
	}
	if tracker == nil {
		tracker = limits.NewTracker(time.UTC, nil)
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, tracker: tracker, cache: c, metrics: recorder, logger: logger, ttl: defaultTTL}
}

func cacheKey(userID uint) string {
	return cache.Key("wallet", "user", userID)
}

func (s *Service) Get(ctx context.Context, userID uint) (*View, error) {
	key := cacheKey(userID)
	if s.cache != nil {
		var cached View
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("wallet cache read failed", "user_id", userID, "error", err)
		}
		if found && cached.Today.Date == s.tracker.Today().Format(time.DateOnly) {
			s.metrics.RecordCacheHit(cacheName)
			return &cached, nil
		}
		s.metrics.RecordCacheMiss(cacheName)
	}

	view, err := s.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, view, s.ttl); err != nil {
			s.logger.Warn("wallet cache write failed", "user_id", userID, "error", err)
		}
	}
	return view, nil
}

func (s *Service) build(ctx context.Context, userID uint) (*View, error) {
	w, err := s.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, err
	}
	rules, err := tier.Lookup(w.Tier)
	if err != nil {
		return nil, err
	}
	counters, err := s.tracker.Snapshot(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	view := &View{
		UserID:  w.UserID,
		Balance: w.Balance,
		Tier:    w.Tier,
		Limits:  rules,
		Today: Usage{
			Date:              counters.Date.Format(time.DateOnly),
			Inflow:            counters.DailyInflow,
			Outflow:           counters.DailyOutflow,
			RemainingInflow:   floorZero(rules.DailyInflowCap.Sub(counters.DailyInflow)),
			RemainingOutflow:  floorZero(rules.DailyOutflowCap.Sub(counters.DailyOutflow)),
			RemainingHeadroom: floorZero(rules.MaxBalance.Sub(w.Balance)),
		},
	}
	if w.HasAccount() {
		view.Account = &Account{
			Number:    *w.AccountNumber,
			BankName:  deref(w.BankName),
			Name:      deref(w.AccountName),
			Reference: deref(w.AccountReference),
		}
	}
	return view, nil
}

// Invalidate drops the cached views of userIDs. Errors are logged only; the short
// TTL bounds how long a stale view can survive.
func (s *Service) Invalidate(ctx context.Context, userIDs ...uint) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Error("failed to invalidate wallet cache", "user_ids", userIDs, "error", err)
	}
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

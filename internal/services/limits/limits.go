// Package limits maintains the per-user daily inflow and outflow counters.
//
// Counters are only ever read and changed on a tracker row that the caller has
// locked inside the same database transaction as the balance change it accompanies.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"

	"github.com/shopspring/decimal"
)

// Direction selects which counter a movement affects.
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// Day truncates t to its calendar date in loc, expressed as midnight UTC so it
// compares equal to values read back from a DATE column.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResetIfNewDay zeroes both counters when today is after the tracker's date.
// The date never moves backwards.
func ResetIfNewDay(t *models.LimitTracker, today time.Time) bool {
	if !today.After(t.Date) {
		return false
	}
	t.Date = today
	t.DailyInflow = decimal.Zero
	t.DailyOutflow = decimal.Zero
	return true
}

func counter(t *models.LimitTracker, dir Direction) *decimal.Decimal {
	if dir == Inflow {
		return &t.DailyInflow
	}
	return &t.DailyOutflow
}

// CheckAndReserve adds amount to the counter when the result stays within limit and
// leaves the tracker untouched otherwise.
func CheckAndReserve(t *models.LimitTracker, dir Direction, amount, limit decimal.Decimal) error {
	c := counter(t, dir)
	next := c.Add(amount)
	if next.GreaterThan(limit) {
		return apperrors.ErrLimitExceeded.WithMessage(
			"daily %s limit of %s exceeded", dir, limit.StringFixed(2))
	}
	*c = next
	return nil
}

// Record adds amount without checking a limit; used for inflows the gateway has
// already settled.
func Record(t *models.LimitTracker, dir Direction, amount decimal.Decimal) {
	c := counter(t, dir)
	*c = c.Add(amount)
}

// Release gives back a reservation made on day. Nothing happens once the tracker has
// rolled over, and the counter never drops below zero.
func Release(t *models.LimitTracker, dir Direction, amount decimal.Decimal, day time.Time) {
	if !t.Date.Equal(day) {
		return
	}
	c := counter(t, dir)
	next := c.Sub(amount)
	if next.IsNegative() {
		next = decimal.Zero
	}
	*c = next
}

// Tracker binds the counters to a clock and a time zone.
type Tracker struct {
	loc *time.Location
	now func() time.Time
}

func NewTracker(loc *time.Location, now func() time.Time) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{loc: loc, now: now}
}

// Today is the current calendar day in the tracker's zone.
func (tr *Tracker) Today() time.Time {
	return Day(tr.now(), tr.loc)
}

// DayOf maps an instant to its calendar day in the tracker's zone.
func (tr *Tracker) DayOf(t time.Time) time.Time {
	return Day(t, tr.loc)
}

// Acquire locks the user's tracker inside tx and rolls it over if a new day started.
func (tr *Tracker) Acquire(ctx context.Context, tx repositories.LimitRepository, userID uint) (*models.LimitTracker, error) {
	today := tr.Today()
	t, err := tx.LockLimitTracker(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to lock limit tracker for user %d: %w", userID, err)
	}
	ResetIfNewDay(t, today)
	return t, nil
}

// Snapshot returns the user's counters as they apply today, without locking.
func (tr *Tracker) Snapshot(ctx context.Context, repo repositories.LimitRepository, userID uint) (models.LimitTracker, error) {
	today := tr.Today()
	t, err := repo.GetLimitTracker(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.LimitTracker{UserID: userID, Date: today}, nil
		}
		return models.LimitTracker{}, err
	}
	ResetIfNewDay(t, today)
	return *t, nil
}

// Package tier holds the per-tier limits table and the upgrade review workflow.
package tier

import (
	"fmt"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"

	"github.com/shopspring/decimal"
)

// Rules bounds a wallet's balance and daily movement.
type Rules struct {
	MaxBalance      decimal.Decimal `json:"max_balance"`
	DailyInflowCap  decimal.Decimal `json:"daily_inflow_cap"`
	DailyOutflowCap decimal.Decimal `json:"daily_outflow_cap"`
}

var policy = map[models.Tier]Rules{
	models.Tier1: {
		MaxBalance:      decimal.NewFromInt(50_000),
		DailyInflowCap:  decimal.NewFromInt(20_000),
		DailyOutflowCap: decimal.NewFromInt(20_000),
	},
	models.Tier2: {
		MaxBalance:      decimal.NewFromInt(200_000),
		DailyInflowCap:  decimal.NewFromInt(100_000),
		DailyOutflowCap: decimal.NewFromInt(100_000),
	},
	models.Tier3: {
		MaxBalance:      decimal.NewFromInt(5_000_000),
		DailyInflowCap:  decimal.NewFromInt(1_000_000),
		DailyOutflowCap: decimal.NewFromInt(1_000_000),
	},
}

// Lookup returns the rules for t.
func Lookup(t models.Tier) (Rules, error) {
	r, ok := policy[t]
	if !ok {
		return Rules{}, fmt.Errorf("unknown tier %q", t)
	}
	return r, nil
}

// Next is the only tier a wallet on t may request.
func Next(t models.Tier) (models.Tier, error) {
	switch t {
	case models.Tier1:
		return models.Tier2, nil
	case models.Tier2:
		return models.Tier3, nil
	case models.Tier3:
		return "", apperrors.ErrAlreadyMaxTier
	}
	return "", fmt.Errorf("unknown tier %q", t)
}

package wheel

import (
	"time"

	"github.com/shopspring/decimal"
)

// FairnessRules holds the per-campaign spin policy
type FairnessRules struct {
	CampaignID string `json:"campaignId" db:"campaign_id"`
	// SpinsPerDay caps non-bonus spins per rolling window; -1 means unlimited
	SpinsPerDay int `json:"spinsPerDay" db:"spins_per_day"`
	// FreeSpinCannotTriggerFreeSpin excludes the respin segment while
	// a banked bonus spin is being consumed
	FreeSpinCannotTriggerFreeSpin bool `json:"freeSpinCannotTriggerFreeSpin" db:"free_spin_cannot_trigger_free_spin"`
}

// Unlimited reports whether the rolling-window cap is disabled
func (r *FairnessRules) Unlimited() bool {
	return r.SpinsPerDay == -1
}

// Policy bundles the engine's tunable constants. Values carry over from
// the original campaign policy; they are configuration, not derived.
type Policy struct {
	// SpinWindow is the rolling lookback for the spins-per-day cap
	SpinWindow time.Duration
	// RewardWindow is the lookback for the per-user reward caps below
	RewardWindow time.Duration
	// HighCostCap excludes segments costing at least HighCostThreshold
	// once the user has HighCostMaxWins such wins inside RewardWindow
	HighCostThreshold decimal.Decimal
	HighCostMaxWins   int
	// MidCost works the same way for the lower tier
	MidCostThreshold decimal.Decimal
	MidCostMaxWins   int
	// RespinMaxWins caps how often a user may win the respin segment
	// inside RewardWindow
	RespinMaxWins int
	// GraceRatio is the pace ratio below which no dampening applies
	GraceRatio float64
	// DampeningSlope scales how fast dampening grows past the grace ratio
	DampeningSlope float64
	// ZeroCostFloor is the minimum weight for zero-cost segments
	ZeroCostFloor float64
	// CrunchRatio is the spend fraction that, combined with the spin
	// target being reached, forces zero-cost-only selection
	CrunchRatio float64
	// MaxBankedSpins is the hard cap on a user's bonus spin balance
	MaxBankedSpins int
}

// DefaultPolicy returns the reference policy constants
func DefaultPolicy() Policy {
	return Policy{
		SpinWindow:        12 * time.Hour,
		RewardWindow:      24 * time.Hour,
		HighCostThreshold: decimal.NewFromInt(10),
		HighCostMaxWins:   1,
		MidCostThreshold:  decimal.NewFromInt(5),
		MidCostMaxWins:    2,
		RespinMaxWins:     1,
		GraceRatio:        0.7,
		DampeningSlope:    0.6,
		ZeroCostFloor:     0.3,
		CrunchRatio:       0.95,
		MaxBankedSpins:    1,
	}
}

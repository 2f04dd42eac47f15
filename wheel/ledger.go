package wheel

import (
	"time"

	"github.com/shopspring/decimal"
)

// PacingMode selects how the pace ratio is computed
type PacingMode string

const (
	// PacingAuto paces spend against a configured spin target
	PacingAuto PacingMode = "auto"
	// PacingManual paces spend against overall budget utilization
	PacingManual PacingMode = "manual"
)

// BudgetLedger is the per-campaign spending aggregate. Only the raw
// totals are stored; remaining budget and average payout are derived on
// read so a stale stored value can never drift from the totals.
type BudgetLedger struct {
	CampaignID  string          `json:"campaignId" db:"campaign_id"`
	TotalBudget decimal.Decimal `json:"totalBudget" db:"total_budget"`
	BudgetSpent decimal.Decimal `json:"budgetSpent" db:"budget_spent"`
	TotalSpins  int64           `json:"totalSpins" db:"total_spins"`
	TargetSpins int64           `json:"targetSpins" db:"target_spins"`
	Mode        PacingMode      `json:"mode" db:"mode"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Remaining returns the budget left to spend
func (l *BudgetLedger) Remaining() decimal.Decimal {
	return l.TotalBudget.Sub(l.BudgetSpent)
}

// AveragePayout returns spend per spin so far, zero before the first spin
func (l *BudgetLedger) AveragePayout() decimal.Decimal {
	if l.TotalSpins == 0 {
		return decimal.Zero
	}
	return l.BudgetSpent.Div(decimal.NewFromInt(l.TotalSpins))
}

// Exhausted reports whether no budget remains at all
func (l *BudgetLedger) Exhausted() bool {
	return !l.Remaining().IsPositive()
}

// IdealSpendPerSpin returns the planned spend per spin in auto mode,
// zero when no target is configured
func (l *BudgetLedger) IdealSpendPerSpin() decimal.Decimal {
	if l.Mode != PacingAuto || l.TargetSpins <= 0 {
		return decimal.Zero
	}
	return l.TotalBudget.Div(decimal.NewFromInt(l.TargetSpins))
}

// PaceRatio measures actual spend against planned spend. In auto mode
// with a spin target it compares spend with the ideal cumulative spend
// for the spins taken so far; zero expected spend (the very first spin)
// yields zero so the first draw is undampened. Otherwise it falls back
// to overall budget utilization.
func (l *BudgetLedger) PaceRatio() float64 {
	if l.Mode == PacingAuto && l.TargetSpins > 0 {
		ideal := l.IdealSpendPerSpin()
		expected := ideal.Mul(decimal.NewFromInt(l.TotalSpins))
		if !expected.IsPositive() {
			return 0
		}
		ratio, _ := l.BudgetSpent.Div(expected).Float64()
		return ratio
	}
	if !l.TotalBudget.IsPositive() {
		return 0
	}
	ratio, _ := l.BudgetSpent.Div(l.TotalBudget).Float64()
	return ratio
}

// HardCrunch reports whether the budget should be treated as exhausted
// for the next spin even though some amount technically remains: either
// the spin target was reached while spend sits at or past the crunch
// ratio, or one more ideal-spend unit would overrun the total budget.
func (l *BudgetLedger) HardCrunch(policy Policy) bool {
	if l.Mode != PacingAuto || l.TargetSpins <= 0 {
		return false
	}
	crunchLine := l.TotalBudget.Mul(decimal.NewFromFloat(policy.CrunchRatio))
	if l.TotalSpins >= l.TargetSpins && l.BudgetSpent.GreaterThanOrEqual(crunchLine) {
		return true
	}
	return l.BudgetSpent.Add(l.IdealSpendPerSpin()).GreaterThan(l.TotalBudget)
}

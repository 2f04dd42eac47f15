package wheel

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of an eligibility check
type Decision struct {
	Eligible bool
	// UseBonusSpin is set when the spin will consume a banked bonus
	// spin instead of counting against the rolling-window cap
	UseBonusSpin   bool
	Message        string
	ResetAt        *time.Time
	SpinsRemaining int
}

// EligibilityChecker decides whether a user may spin right now. The
// check is an advisory pre-filter; the committer re-validates inside
// its atomic unit to close the race between check and commit.
type EligibilityChecker struct {
	spins  SpinStore
	bonus  BonusStore
	policy Policy
	now    func() time.Time
}

// NewEligibilityChecker builds a checker over the given stores
func NewEligibilityChecker(spins SpinStore, bonus BonusStore, policy Policy) *EligibilityChecker {
	return &EligibilityChecker{
		spins:  spins,
		bonus:  bonus,
		policy: policy,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (c *EligibilityChecker) WithClock(now func() time.Time) *EligibilityChecker {
	c.now = now
	return c
}

// Check evaluates the rolling-window cap for a user. A banked bonus
// spin exempts the spin from the cap entirely and is consumed instead.
func (c *EligibilityChecker) Check(ctx context.Context, userID, campaignID string, rules *FairnessRules) (*Decision, error) {
	balance, err := c.bonus.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read bonus balance: %w", err)
	}
	if balance >= 1 {
		return &Decision{Eligible: true, UseBonusSpin: true, SpinsRemaining: remainingSpins(rules, 0)}, nil
	}

	if rules.Unlimited() {
		return &Decision{Eligible: true, SpinsRemaining: -1}, nil
	}

	since := c.now().Add(-c.policy.SpinWindow)
	window, err := c.spins.CountSpins(ctx, userID, campaignID, since)
	if err != nil {
		return nil, fmt.Errorf("count window spins: %w", err)
	}

	if window.Count >= rules.SpinsPerDay {
		resetAt := window.Oldest.Add(c.policy.SpinWindow)
		wait := resetAt.Sub(c.now()).Round(time.Minute)
		if wait < 0 {
			wait = 0
		}
		return &Decision{
			Eligible: false,
			Message:  fmt.Sprintf("Spin limit reached. Next spin available in %s.", formatWait(wait)),
			ResetAt:  &resetAt,
		}, nil
	}

	return &Decision{Eligible: true, SpinsRemaining: remainingSpins(rules, window.Count)}, nil
}

func remainingSpins(rules *FairnessRules, used int) int {
	if rules.Unlimited() {
		return -1
	}
	remaining := rules.SpinsPerDay - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func formatWait(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

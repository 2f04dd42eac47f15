package wheel

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WindowCount summarizes the cap-counted spins inside a rolling window
type WindowCount struct {
	Count int
	// Oldest is the creation time of the oldest counted spin, zero when
	// Count is 0. The cap reset ETA is Oldest plus the window length.
	Oldest time.Time
}

// RewardWindowStats counts a user's capped reward wins inside the
// reward window, bucketed by the policy thresholds
type RewardWindowStats struct {
	RespinWins   int
	HighCostWins int
	MidCostWins  int
}

// CampaignStore looks up campaign configuration
type CampaignStore interface {
	// Live returns the single live campaign, or nil when none is live
	Live(ctx context.Context) (*Campaign, error)
	// RulesFor returns the fairness rules for a campaign, nil when missing
	RulesFor(ctx context.Context, campaignID string) (*FairnessRules, error)
}

// BudgetStore reads and mutates the per-campaign budget ledger
type BudgetStore interface {
	// Ledger returns the campaign's budget ledger, nil when missing
	Ledger(ctx context.Context, campaignID string) (*BudgetLedger, error)
	// ApplySpend adds cost to the spent total and increments the spin
	// count, guarded so remaining budget can never go negative. It
	// reports false without mutating when the guard fails.
	ApplySpend(ctx context.Context, campaignID string, cost decimal.Decimal) (bool, error)
	// RevertSpend undoes one applied spend when a later commit step
	// fails outside a transaction
	RevertSpend(ctx context.Context, campaignID string, cost decimal.Decimal) error
}

// SpinStore appends and queries the immutable spin history
type SpinStore interface {
	Append(ctx context.Context, record *SpinRecord) error
	// CountSpins counts the user's non-bonus spins since the given time
	CountSpins(ctx context.Context, userID, campaignID string, since time.Time) (WindowCount, error)
	// RewardStats counts the user's capped wins since the given time
	RewardStats(ctx context.Context, userID, campaignID string, since time.Time, high, mid decimal.Decimal) (RewardWindowStats, error)
	// RecentByUser returns the user's latest spins, newest first
	RecentByUser(ctx context.Context, userID, campaignID string, limit int) ([]SpinRecord, error)
}

// BonusStore reads and mutates per-user banked bonus spins
type BonusStore interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Apply adds delta to the balance, skipping the change when it would
	// exceed maxBalance or drop below zero. It reports whether the delta
	// took effect.
	Apply(ctx context.Context, userID string, delta, maxBalance int) (bool, error)
}

// SegmentStatsStore keeps per-segment win counters for reporting
type SegmentStatsStore interface {
	IncrementWin(ctx context.Context, campaignID, segmentID string) error
	Stats(ctx context.Context, campaignID string) ([]SegmentStat, error)
}

// TxProvider runs a function inside a storage transaction. Store calls
// made with the context passed to fn join that transaction.
type TxProvider interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles the persistence interfaces the engine depends on
type Stores struct {
	Campaigns CampaignStore
	Budgets   BudgetStore
	Spins     SpinStore
	Bonus     BonusStore
	Stats     SegmentStatsStore
}

package feed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Update is one budget-ledger snapshot pushed to feed listeners after
// spins commit. Admin dashboards watch these to track campaign burn.
type Update struct {
	CampaignID      string          `json:"campaign_id"`
	BudgetRemaining decimal.Decimal `json:"budget_remaining"`
	BudgetSpent     decimal.Decimal `json:"budget_spent"`
	TotalSpins      int64           `json:"total_spins"`
	PaceRatio       float64         `json:"pace_ratio"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ServiceConfig configures the feed service
type ServiceConfig struct {
	// FlushInterval is how often buffered updates are broadcast
	FlushInterval time.Duration
}

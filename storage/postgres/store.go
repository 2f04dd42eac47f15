package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Store implements every engine store on top of Postgres. Writes made
// within Provider.Transact share one transaction, which is what makes
// the transactional commit strategy safe across server processes.
type Store struct {
	provider *Provider
}

// NewStore builds the Postgres-backed store
func NewStore(db *sqlx.DB) *Store {
	return &Store{provider: NewProvider(db)}
}

// Provider exposes the transaction boundary for the commit strategy
func (s *Store) Provider() *Provider {
	return s.provider
}

func (s *Store) Live(ctx context.Context) (*wheel.Campaign, error) {
	var c wheel.Campaign
	err := s.provider.runner(ctx).GetContext(ctx, &c,
		`SELECT id, name, status, starts_at, ends_at, created_at
		 FROM campaigns WHERE status = 'live' LIMIT 1`)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select live campaign: %w", err)
	}
	return &c, nil
}

func (s *Store) RulesFor(ctx context.Context, campaignID string) (*wheel.FairnessRules, error) {
	var r wheel.FairnessRules
	err := s.provider.runner(ctx).GetContext(ctx, &r,
		`SELECT campaign_id, spins_per_day, free_spin_cannot_trigger_free_spin
		 FROM fairness_rules WHERE campaign_id = $1`, campaignID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select fairness rules: %w", err)
	}
	return &r, nil
}

func (s *Store) Ledger(ctx context.Context, campaignID string) (*wheel.BudgetLedger, error) {
	var l wheel.BudgetLedger
	err := s.provider.runner(ctx).GetContext(ctx, &l,
		`SELECT campaign_id, total_budget, budget_spent, total_spins, target_spins, mode, updated_at
		 FROM budget_ledgers WHERE campaign_id = $1`, campaignID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select budget ledger: %w", err)
	}
	return &l, nil
}

// ApplySpend is guarded so the remaining budget can never go negative;
// zero rows affected means the guard rejected the spend.
func (s *Store) ApplySpend(ctx context.Context, campaignID string, cost decimal.Decimal) (bool, error) {
	res, err := s.provider.runner(ctx).ExecContext(ctx,
		`UPDATE budget_ledgers
		 SET budget_spent = budget_spent + $2,
		     total_spins = total_spins + 1,
		     updated_at = now()
		 WHERE campaign_id = $1
		   AND total_budget - budget_spent >= $2`,
		campaignID, cost)
	if err != nil {
		return false, fmt.Errorf("update budget ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("budget ledger rows affected: %w", err)
	}
	return affected == 1, nil
}

// RevertSpend compensates a spend applied by a commit whose later steps
// failed. Clamped so the spent total never goes negative.
func (s *Store) RevertSpend(ctx context.Context, campaignID string, cost decimal.Decimal) error {
	_, err := s.provider.runner(ctx).ExecContext(ctx,
		`UPDATE budget_ledgers
		 SET budget_spent = GREATEST(budget_spent - $2, 0),
		     total_spins = GREATEST(total_spins - 1, 0),
		     updated_at = now()
		 WHERE campaign_id = $1`,
		campaignID, cost)
	if err != nil {
		return fmt.Errorf("revert budget ledger spend: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, record *wheel.SpinRecord) error {
	_, err := s.provider.runner(ctx).ExecContext(ctx,
		`INSERT INTO spin_records
		 (id, user_id, campaign_id, segment_id, segment_order, reward_type, cost, used_bonus_spin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.UserID, record.CampaignID, record.SegmentID,
		record.SegmentOrder, record.RewardType, record.Cost,
		record.UsedBonusSpin, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert spin record: %w", err)
	}
	return nil
}

func (s *Store) CountSpins(ctx context.Context, userID, campaignID string, since time.Time) (wheel.WindowCount, error) {
	var row struct {
		Count  int          `db:"count"`
		Oldest sql.NullTime `db:"oldest"`
	}
	err := s.provider.runner(ctx).GetContext(ctx, &row,
		`SELECT count(*) AS count, min(created_at) AS oldest
		 FROM spin_records
		 WHERE user_id = $1 AND campaign_id = $2
		   AND used_bonus_spin = false AND created_at >= $3`,
		userID, campaignID, since)
	if err != nil {
		return wheel.WindowCount{}, fmt.Errorf("count window spins: %w", err)
	}
	out := wheel.WindowCount{Count: row.Count}
	if row.Oldest.Valid {
		out.Oldest = row.Oldest.Time
	}
	return out, nil
}

func (s *Store) RewardStats(ctx context.Context, userID, campaignID string, since time.Time, high, mid decimal.Decimal) (wheel.RewardWindowStats, error) {
	var row struct {
		RespinWins   int `db:"respin_wins"`
		HighCostWins int `db:"high_cost_wins"`
		MidCostWins  int `db:"mid_cost_wins"`
	}
	err := s.provider.runner(ctx).GetContext(ctx, &row,
		`SELECT
		   count(*) FILTER (WHERE reward_type = 'respin') AS respin_wins,
		   count(*) FILTER (WHERE cost >= $4) AS high_cost_wins,
		   count(*) FILTER (WHERE cost >= $5) AS mid_cost_wins
		 FROM spin_records
		 WHERE user_id = $1 AND campaign_id = $2 AND created_at >= $3`,
		userID, campaignID, since, high, mid)
	if err != nil {
		return wheel.RewardWindowStats{}, fmt.Errorf("count reward wins: %w", err)
	}
	return wheel.RewardWindowStats{
		RespinWins:   row.RespinWins,
		HighCostWins: row.HighCostWins,
		MidCostWins:  row.MidCostWins,
	}, nil
}

func (s *Store) RecentByUser(ctx context.Context, userID, campaignID string, limit int) ([]wheel.SpinRecord, error) {
	var records []wheel.SpinRecord
	err := s.provider.runner(ctx).SelectContext(ctx, &records,
		`SELECT id, user_id, campaign_id, segment_id, segment_order, reward_type, cost, used_bonus_spin, created_at
		 FROM spin_records
		 WHERE user_id = $1 AND campaign_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent spins: %w", err)
	}
	return records, nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.provider.runner(ctx).GetContext(ctx, &balance,
		`SELECT balance FROM bonus_balances WHERE user_id = $1`, userID)
	if notFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select bonus balance: %w", err)
	}
	return balance, nil
}

// Apply mutates the balance with the bounds check in the statement
// itself, so concurrent commits cannot push a user outside [0, max].
func (s *Store) Apply(ctx context.Context, userID string, delta, maxBalance int) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if delta >= 0 {
		res, err = s.provider.runner(ctx).ExecContext(ctx,
			`INSERT INTO bonus_balances (user_id, balance, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (user_id) DO UPDATE
			 SET balance = bonus_balances.balance + $2, updated_at = now()
			 WHERE bonus_balances.balance + $2 <= $3`,
			userID, delta, maxBalance)
	} else {
		res, err = s.provider.runner(ctx).ExecContext(ctx,
			`UPDATE bonus_balances
			 SET balance = balance + $2, updated_at = now()
			 WHERE user_id = $1 AND balance + $2 >= 0`,
			userID, delta)
	}
	if err != nil {
		return false, fmt.Errorf("apply bonus delta: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bonus balance rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) IncrementWin(ctx context.Context, campaignID, segmentID string) error {
	_, err := s.provider.runner(ctx).ExecContext(ctx,
		`INSERT INTO segment_stats (campaign_id, segment_id, wins, updated_at)
		 VALUES ($1, $2, 1, now())
		 ON CONFLICT (campaign_id, segment_id) DO UPDATE
		 SET wins = segment_stats.wins + 1, updated_at = now()`,
		campaignID, segmentID)
	if err != nil {
		return fmt.Errorf("increment segment wins: %w", err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context, campaignID string) ([]wheel.SegmentStat, error) {
	var stats []wheel.SegmentStat
	err := s.provider.runner(ctx).SelectContext(ctx, &stats,
		`SELECT campaign_id, segment_id, wins, updated_at
		 FROM segment_stats WHERE campaign_id = $1
		 ORDER BY segment_id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("select segment stats: %w", err)
	}
	return stats, nil
}

// Stores returns the store wired into the engine's bundle
func (s *Store) Stores() wheel.Stores {
	return wheel.Stores{
		Campaigns: s,
		Budgets:   s,
		Spins:     s,
		Bonus:     s,
		Stats:     s,
	}
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of every engine store. It backs
// single-instance deployments without Postgres and the test suite. All
// methods are safe for concurrent use; a single mutex guards the whole
// store, which doubles as the transaction boundary for Transact.
type Store struct {
	mu        sync.Mutex
	campaigns []wheel.Campaign
	rules     map[string]wheel.FairnessRules
	ledgers   map[string]*wheel.BudgetLedger
	spins     []wheel.SpinRecord
	bonus     map[string]int
	stats     map[string]map[string]*wheel.SegmentStat
}

// NewStore builds an empty in-memory store
func NewStore() *Store {
	return &Store{
		rules:   make(map[string]wheel.FairnessRules),
		ledgers: make(map[string]*wheel.BudgetLedger),
		bonus:   make(map[string]int),
		stats:   make(map[string]map[string]*wheel.SegmentStat),
	}
}

// SeedCampaign installs a campaign with its rules and budget ledger
func (s *Store) SeedCampaign(c wheel.Campaign, rules wheel.FairnessRules, ledger wheel.BudgetLedger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = append(s.campaigns, c)
	s.rules[c.ID] = rules
	s.ledgers[c.ID] = &ledger
}

// SetBonusBalance sets a user's banked bonus spins directly
func (s *Store) SetBonusBalance(userID string, balance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonus[userID] = balance
}

func (s *Store) Live(ctx context.Context) (*wheel.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.campaigns {
		if s.campaigns[i].IsLive() {
			c := s.campaigns[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) RulesFor(ctx context.Context, campaignID string) (*wheel.FairnessRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[campaignID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) Ledger(ctx context.Context, campaignID string) (*wheel.BudgetLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[campaignID]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (s *Store) ApplySpend(ctx context.Context, campaignID string, cost decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[campaignID]
	if !ok {
		return false, nil
	}
	if l.Remaining().LessThan(cost) {
		return false, nil
	}
	l.BudgetSpent = l.BudgetSpent.Add(cost)
	l.TotalSpins++
	l.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) RevertSpend(ctx context.Context, campaignID string, cost decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[campaignID]
	if !ok {
		return nil
	}
	l.BudgetSpent = l.BudgetSpent.Sub(cost)
	if l.BudgetSpent.IsNegative() {
		l.BudgetSpent = decimal.Zero
	}
	if l.TotalSpins > 0 {
		l.TotalSpins--
	}
	l.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Append(ctx context.Context, record *wheel.SpinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spins = append(s.spins, *record)
	return nil
}

func (s *Store) CountSpins(ctx context.Context, userID, campaignID string, since time.Time) (wheel.WindowCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out wheel.WindowCount
	for i := range s.spins {
		r := &s.spins[i]
		if r.UserID != userID || r.CampaignID != campaignID || r.UsedBonusSpin {
			continue
		}
		if r.CreatedAt.Before(since) {
			continue
		}
		out.Count++
		if out.Oldest.IsZero() || r.CreatedAt.Before(out.Oldest) {
			out.Oldest = r.CreatedAt
		}
	}
	return out, nil
}

func (s *Store) RewardStats(ctx context.Context, userID, campaignID string, since time.Time, high, mid decimal.Decimal) (wheel.RewardWindowStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out wheel.RewardWindowStats
	for i := range s.spins {
		r := &s.spins[i]
		if r.UserID != userID || r.CampaignID != campaignID || r.CreatedAt.Before(since) {
			continue
		}
		if r.RewardType == wheel.SegmentRespin {
			out.RespinWins++
		}
		if r.Cost.GreaterThanOrEqual(high) {
			out.HighCostWins++
		}
		if r.Cost.GreaterThanOrEqual(mid) {
			out.MidCostWins++
		}
	}
	return out, nil
}

func (s *Store) RecentByUser(ctx context.Context, userID, campaignID string, limit int) ([]wheel.SpinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wheel.SpinRecord
	for i := range s.spins {
		r := s.spins[i]
		if r.UserID == userID && r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonus[userID], nil
}

func (s *Store) Apply(ctx context.Context, userID string, delta, maxBalance int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.bonus[userID] + delta
	if next < 0 || next > maxBalance {
		return false, nil
	}
	s.bonus[userID] = next
	return true, nil
}

func (s *Store) IncrementWin(ctx context.Context, campaignID, segmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCampaign, ok := s.stats[campaignID]
	if !ok {
		byCampaign = make(map[string]*wheel.SegmentStat)
		s.stats[campaignID] = byCampaign
	}
	stat, ok := byCampaign[segmentID]
	if !ok {
		stat = &wheel.SegmentStat{CampaignID: campaignID, SegmentID: segmentID}
		byCampaign[segmentID] = stat
	}
	stat.Wins++
	stat.UpdatedAt = time.Now()
	return nil
}

func (s *Store) Stats(ctx context.Context, campaignID string) ([]wheel.SegmentStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wheel.SegmentStat
	for _, stat := range s.stats[campaignID] {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out, nil
}

// Transact satisfies wheel.TxProvider. The store has no multi-step
// isolation; each method takes the mutex on its own and the caller's
// per-user lock serializes the commit sequence.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SpinCount returns the total number of committed spin records
func (s *Store) SpinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spins)
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

package wheel

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// stubSpinStore returns canned window counts and reward stats
type stubSpinStore struct {
	window WindowCount
	stats  RewardWindowStats
	spins  []SpinRecord
}

func (s *stubSpinStore) Append(ctx context.Context, record *SpinRecord) error {
	s.spins = append(s.spins, *record)
	return nil
}

func (s *stubSpinStore) CountSpins(ctx context.Context, userID, campaignID string, since time.Time) (WindowCount, error) {
	return s.window, nil
}

func (s *stubSpinStore) RewardStats(ctx context.Context, userID, campaignID string, since time.Time, high, mid decimal.Decimal) (RewardWindowStats, error) {
	return s.stats, nil
}

func (s *stubSpinStore) RecentByUser(ctx context.Context, userID, campaignID string, limit int) ([]SpinRecord, error) {
	return s.spins, nil
}

// stubBonusStore holds a mutable balance
type stubBonusStore struct {
	balance int
	// failConsume makes negative deltas report no effect, simulating a
	// balance drained between revalidation and the write
	failConsume bool
}

func (s *stubBonusStore) Balance(ctx context.Context, userID string) (int, error) {
	return s.balance, nil
}

func (s *stubBonusStore) Apply(ctx context.Context, userID string, delta, maxBalance int) (bool, error) {
	if s.failConsume && delta < 0 {
		return false, nil
	}
	next := s.balance + delta
	if next < 0 || next > maxBalance {
		return false, nil
	}
	s.balance = next
	return true, nil
}

func TestCheckAllowsSpinUnderCap(t *testing.T) {
	checker := NewEligibilityChecker(&stubSpinStore{}, &stubBonusStore{}, DefaultPolicy())
	rules := &FairnessRules{SpinsPerDay: 1}

	decision, err := checker.Check(context.Background(), "u1", "c1", rules)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.Eligible {
		t.Errorf("expected eligible with no prior spins")
	}
	if decision.UseBonusSpin {
		t.Errorf("expected no bonus spin consumption")
	}
	if decision.SpinsRemaining != 1 {
		t.Errorf("expected 1 spin remaining, got %d", decision.SpinsRemaining)
	}
}

func TestCheckRejectsAtCap(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	oldest := now.Add(-4 * time.Hour)

	spins := &stubSpinStore{window: WindowCount{Count: 1, Oldest: oldest}}
	checker := NewEligibilityChecker(spins, &stubBonusStore{}, DefaultPolicy()).
		WithClock(func() time.Time { return now })
	rules := &FairnessRules{SpinsPerDay: 1}

	decision, err := checker.Check(context.Background(), "u1", "c1", rules)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if decision.Eligible {
		t.Errorf("expected ineligible at cap")
	}
	if decision.ResetAt == nil {
		t.Fatalf("expected a reset time")
	}
	expectedReset := oldest.Add(12 * time.Hour)
	if !decision.ResetAt.Equal(expectedReset) {
		t.Errorf("expected reset at %v, got %v", expectedReset, decision.ResetAt)
	}
	if !strings.Contains(decision.Message, "8h 0m") {
		t.Errorf("expected wait of 8h 0m in message, got %q", decision.Message)
	}
}

func TestCheckBonusSpinBypassesCap(t *testing.T) {
	// the window is full, but a banked bonus spin exempts the user
	spins := &stubSpinStore{window: WindowCount{Count: 1, Oldest: time.Now()}}
	bonus := &stubBonusStore{balance: 1}
	checker := NewEligibilityChecker(spins, bonus, DefaultPolicy())
	rules := &FairnessRules{SpinsPerDay: 1}

	decision, err := checker.Check(context.Background(), "u1", "c1", rules)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.Eligible {
		t.Errorf("expected eligible with banked bonus spin")
	}
	if !decision.UseBonusSpin {
		t.Errorf("expected the bonus spin to be consumed")
	}
}

func TestCheckUnlimitedRules(t *testing.T) {
	checker := NewEligibilityChecker(&stubSpinStore{window: WindowCount{Count: 500}}, &stubBonusStore{}, DefaultPolicy())
	rules := &FairnessRules{SpinsPerDay: -1}

	decision, err := checker.Check(context.Background(), "u1", "c1", rules)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !decision.Eligible {
		t.Errorf("expected eligible with unlimited rules")
	}
	if decision.SpinsRemaining != -1 {
		t.Errorf("expected unlimited marker -1, got %d", decision.SpinsRemaining)
	}
}

func TestFormatWait(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{8 * time.Hour, "8h 0m"},
		{90 * time.Minute, "1h 30m"},
		{45 * time.Minute, "45m"},
		{0, "0m"},
	}

	for _, tt := range tests {
		if got := formatWait(tt.d); got != tt.expected {
			t.Errorf("expected %q for %v, got %q", tt.expected, tt.d, got)
		}
	}
}

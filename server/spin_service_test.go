package server

import (
	"context"
	"sync"
	"testing"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/Digital-Creators-Team/prize-wheel-module/storage/memory"
	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func seededStore(spinsPerDay int) *memory.Store {
	store := memory.NewStore()
	store.SeedCampaign(
		wheel.Campaign{ID: "camp-1", Name: "Launch Week", Status: wheel.CampaignLive},
		wheel.FairnessRules{
			CampaignID:                    "camp-1",
			SpinsPerDay:                   spinsPerDay,
			FreeSpinCannotTriggerFreeSpin: true,
		},
		wheel.BudgetLedger{
			CampaignID:  "camp-1",
			TotalBudget: decimal.NewFromInt(5000),
			TargetSpins: 2000,
			Mode:        wheel.PacingAuto,
		},
	)
	return store
}

// testTable has no respin segment so spin counts in these tests stay
// deterministic regardless of where the draw lands
func testTable(t *testing.T) *wheel.SegmentTable {
	t.Helper()
	table, err := wheel.NewSegmentTable([]wheel.Segment{
		{ID: "s0", Order: 0, Type: wheel.SegmentCash, Label: "$1", Value: decimal.NewFromInt(1), Cost: decimal.NewFromInt(1), Enabled: true},
		{ID: "s1", Order: 1, Type: wheel.SegmentNoWin, Label: "Try Again", Enabled: true},
		{ID: "s2", Order: 2, Type: wheel.SegmentCash, Label: "$5", Value: decimal.NewFromInt(5), Cost: decimal.NewFromInt(5), Enabled: true},
		{ID: "s3", Order: 3, Type: wheel.SegmentNoWin, Label: "Try Again", Enabled: true},
	})
	if err != nil {
		t.Fatalf("failed to build segment table: %v", err)
	}
	return table
}

func newTestService(t *testing.T, store *memory.Store) *WheelSpinService {
	t.Helper()
	stores := store.Stores()
	policy := wheel.DefaultPolicy()
	return NewWheelSpinService(WheelSpinServiceConfig{
		Stores:    stores,
		Table:     testTable(t),
		Policy:    policy,
		Committer: wheel.NewTransactionalCommit(store, stores, policy, zerolog.Nop()),
		Locker:    wheel.NewLocalLocker(),
		Logger:    zerolog.Nop(),
	})
}

func TestSpinHappyPath(t *testing.T) {
	store := seededStore(1)
	svc := newTestService(t, store)

	result, err := svc.Spin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected successful spin, got %v", err)
	}
	if result.SpinID == "" {
		t.Errorf("expected a spin id")
	}
	if result.SegmentID == "" {
		t.Errorf("expected a segment id")
	}
	if store.SpinCount() != 1 {
		t.Errorf("expected 1 committed spin, got %d", store.SpinCount())
	}

	ledger, err := store.Ledger(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("expected ledger, got %v", err)
	}
	if ledger.TotalSpins != 1 {
		t.Errorf("expected ledger to count the spin, got %d", ledger.TotalSpins)
	}
	if !ledger.BudgetSpent.Equal(result.Cost) {
		t.Errorf("expected spent %s, got %s", result.Cost, ledger.BudgetSpent)
	}
}

func TestSpinEnforcesDailyCap(t *testing.T) {
	store := seededStore(1)
	svc := newTestService(t, store)

	if _, err := svc.Spin(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected first spin to succeed, got %v", err)
	}

	_, err := svc.Spin(context.Background(), "user-1")
	if err == nil {
		t.Fatalf("expected second spin to hit the cap")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrSpinLimitReached {
		t.Errorf("expected spin limit code, got %v", err)
	}
	if store.SpinCount() != 1 {
		t.Errorf("expected only 1 committed spin, got %d", store.SpinCount())
	}
}

func TestSpinCapHoldsUnderConcurrency(t *testing.T) {
	store := seededStore(1)
	svc := newTestService(t, store)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Spin(context.Background(), "user-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 spin to succeed, got %d", succeeded)
	}
	if store.SpinCount() != 1 {
		t.Errorf("expected 1 committed spin, got %d", store.SpinCount())
	}
}

func TestSpinIndependentUsers(t *testing.T) {
	store := seededStore(1)
	svc := newTestService(t, store)

	for _, user := range []string{"user-1", "user-2", "user-3"} {
		if _, err := svc.Spin(context.Background(), user); err != nil {
			t.Errorf("expected %s spin to succeed, got %v", user, err)
		}
	}
	if store.SpinCount() != 3 {
		t.Errorf("expected 3 committed spins, got %d", store.SpinCount())
	}
}

func TestSpinConsumesBankedBonusFirst(t *testing.T) {
	store := seededStore(1)
	store.SetBonusBalance("user-1", 1)
	svc := newTestService(t, store)

	// the banked spin is consumed before the regular allowance
	first, err := svc.Spin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected bonus spin to succeed, got %v", err)
	}
	if !first.UsedBonusSpin {
		t.Errorf("expected the first spin to consume the banked spin")
	}

	// the rules exclude respin while a banked spin is consumed, so the
	// balance must be empty now
	balance, _ := store.Balance(context.Background(), "user-1")
	if balance != 0 {
		t.Fatalf("expected empty balance after the bonus spin, got %d", balance)
	}

	second, err := svc.Spin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected the regular spin to succeed, got %v", err)
	}
	if second.UsedBonusSpin {
		t.Errorf("expected the second spin to count against the window")
	}

	if _, err := svc.Spin(context.Background(), "user-1"); err == nil {
		t.Errorf("expected the third spin to hit the cap")
	}
}

func TestSpinNoLiveCampaign(t *testing.T) {
	svc := newTestService(t, memory.NewStore())

	_, err := svc.Spin(context.Background(), "user-1")
	if err == nil {
		t.Fatalf("expected no-campaign error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrNoLiveCampaign {
		t.Errorf("expected no-live-campaign code, got %v", err)
	}
}

func TestStateReportsEntitlements(t *testing.T) {
	store := seededStore(2)
	store.SetBonusBalance("user-1", 1)
	svc := newTestService(t, store)

	state, err := svc.State(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected state, got %v", err)
	}
	if state.CampaignID != "camp-1" {
		t.Errorf("expected campaign camp-1, got %s", state.CampaignID)
	}
	if len(state.Segments) != 4 {
		t.Errorf("expected the full segment layout, got %d segments", len(state.Segments))
	}
	// fresh ledger means no dampening, so the four segments draw evenly
	for _, seg := range state.Segments {
		if seg.WinChance != 0.25 {
			t.Errorf("expected win chance 0.25 for %s, got %v", seg.ID, seg.WinChance)
		}
	}
	if !state.CanSpin {
		t.Errorf("expected user to be allowed to spin")
	}
	if state.BonusSpins != 1 {
		t.Errorf("expected 1 banked spin, got %d", state.BonusSpins)
	}
	if state.SpinsRemaining != 2 {
		t.Errorf("expected 2 spins remaining, got %d", state.SpinsRemaining)
	}
}

func TestStateAfterCapStillServed(t *testing.T) {
	store := seededStore(1)
	svc := newTestService(t, store)

	if _, err := svc.Spin(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected spin to succeed, got %v", err)
	}

	state, err := svc.State(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected state after cap, got %v", err)
	}
	if state.CanSpin {
		t.Errorf("expected spinning to be blocked at the cap")
	}
	if state.Message == "" {
		t.Errorf("expected a wait message")
	}
	if state.ResetAt == nil {
		t.Errorf("expected a reset time")
	}
}

func TestHistoryLimits(t *testing.T) {
	store := seededStore(-1)
	svc := newTestService(t, store)

	for i := 0; i < 25; i++ {
		if _, err := svc.Spin(context.Background(), "user-1"); err != nil {
			t.Fatalf("spin %d failed: %v", i, err)
		}
	}

	records, err := svc.History(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(records) != defaultHistoryLimit {
		t.Errorf("expected default limit %d, got %d", defaultHistoryLimit, len(records))
	}

	records, err = svc.History(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(records) != 10 {
		t.Errorf("expected 10 records, got %d", len(records))
	}

	records, err = svc.History(context.Background(), "user-1", 500)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(records) > maxHistoryLimit {
		t.Errorf("expected at most %d records, got %d", maxHistoryLimit, len(records))
	}
}

func TestHistoryScopedToUser(t *testing.T) {
	store := seededStore(-1)
	svc := newTestService(t, store)

	if _, err := svc.Spin(context.Background(), "user-1"); err != nil {
		t.Fatalf("spin failed: %v", err)
	}
	if _, err := svc.Spin(context.Background(), "user-2"); err != nil {
		t.Fatalf("spin failed: %v", err)
	}

	records, err := svc.History(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].UserID != "user-1" {
		t.Errorf("expected user-1 record, got %s", records[0].UserID)
	}
}

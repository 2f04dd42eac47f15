package wheel

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubCampaignStore struct {
	campaign *Campaign
	rules    *FairnessRules
}

func (s *stubCampaignStore) Live(ctx context.Context) (*Campaign, error) {
	return s.campaign, nil
}

func (s *stubCampaignStore) RulesFor(ctx context.Context, campaignID string) (*FairnessRules, error) {
	return s.rules, nil
}

type stubBudgetStore struct {
	ledger      *BudgetLedger
	rejectSpend bool
	spendCalls  int
	revertCalls int
}

func (s *stubBudgetStore) Ledger(ctx context.Context, campaignID string) (*BudgetLedger, error) {
	return s.ledger, nil
}

func (s *stubBudgetStore) ApplySpend(ctx context.Context, campaignID string, cost decimal.Decimal) (bool, error) {
	s.spendCalls++
	if s.rejectSpend {
		return false, nil
	}
	if s.ledger.Remaining().LessThan(cost) {
		return false, nil
	}
	s.ledger.BudgetSpent = s.ledger.BudgetSpent.Add(cost)
	s.ledger.TotalSpins++
	return true, nil
}

func (s *stubBudgetStore) RevertSpend(ctx context.Context, campaignID string, cost decimal.Decimal) error {
	s.revertCalls++
	s.ledger.BudgetSpent = s.ledger.BudgetSpent.Sub(cost)
	s.ledger.TotalSpins--
	return nil
}

type stubStatsStore struct {
	wins map[string]int
}

func (s *stubStatsStore) IncrementWin(ctx context.Context, campaignID, segmentID string) error {
	if s.wins == nil {
		s.wins = make(map[string]int)
	}
	s.wins[segmentID]++
	return nil
}

func (s *stubStatsStore) Stats(ctx context.Context, campaignID string) ([]SegmentStat, error) {
	return nil, nil
}

type passthroughTx struct{ calls int }

func (p *passthroughTx) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

func commitFixture() (Stores, *stubBudgetStore, *stubSpinStore, *stubBonusStore, *stubStatsStore) {
	budgets := &stubBudgetStore{
		ledger: &BudgetLedger{
			CampaignID:  "c1",
			TotalBudget: decimal.NewFromInt(100),
			BudgetSpent: decimal.NewFromInt(10),
			TotalSpins:  5,
			TargetSpins: 50,
			Mode:        PacingAuto,
		},
	}
	spins := &stubSpinStore{}
	bonus := &stubBonusStore{}
	stats := &stubStatsStore{}

	stores := Stores{
		Campaigns: &stubCampaignStore{},
		Budgets:   budgets,
		Spins:     spins,
		Bonus:     bonus,
		Stats:     stats,
	}
	return stores, budgets, spins, bonus, stats
}

func commitReq(seg *Segment, useBonus bool) CommitRequest {
	return CommitRequest{
		UserID:       "u1",
		Campaign:     &Campaign{ID: "c1", Status: CampaignLive},
		Rules:        &FairnessRules{CampaignID: "c1", SpinsPerDay: 1},
		Segment:      seg,
		UseBonusSpin: useBonus,
	}
}

func TestCommitPersistsAllEffects(t *testing.T) {
	stores, budgets, spins, _, stats := commitFixture()
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	outcome, err := committer.Commit(context.Background(), commitReq(seg, false))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(spins.spins) != 1 {
		t.Fatalf("expected 1 spin record, got %d", len(spins.spins))
	}
	record := spins.spins[0]
	if record.SegmentID != "s1" || record.SegmentOrder != 2 {
		t.Errorf("expected record for s1 at order 2, got %s at %d", record.SegmentID, record.SegmentOrder)
	}
	if record.ID == "" {
		t.Errorf("expected a generated spin id")
	}

	if !budgets.ledger.BudgetSpent.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected spent 15, got %s", budgets.ledger.BudgetSpent)
	}
	if budgets.ledger.TotalSpins != 6 {
		t.Errorf("expected 6 total spins, got %d", budgets.ledger.TotalSpins)
	}
	if stats.wins["s1"] != 1 {
		t.Errorf("expected 1 win counted for s1, got %d", stats.wins["s1"])
	}
	if outcome.BonusGranted {
		t.Errorf("expected no bonus grant for a cash win")
	}
}

func TestCommitBudgetGuardRejects(t *testing.T) {
	stores, budgets, spins, _, _ := commitFixture()
	budgets.rejectSpend = true
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	_, err := committer.Commit(context.Background(), commitReq(seg, false))
	if err == nil {
		t.Fatalf("expected commit conflict error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCommitConflict {
		t.Errorf("expected commit conflict code, got %v", err)
	}
	if len(spins.spins) != 0 {
		t.Errorf("expected no record for a rejected spin, got %d", len(spins.spins))
	}
	if !budgets.ledger.BudgetSpent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected spent unchanged at 10, got %s", budgets.ledger.BudgetSpent)
	}
}

func TestCommitConflictLeavesNoWindowSpin(t *testing.T) {
	stores, budgets, spins, _, _ := commitFixture()
	budgets.ledger.TotalBudget = decimal.NewFromInt(5)
	budgets.ledger.BudgetSpent = decimal.Zero
	budgets.ledger.Mode = PacingManual
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	// the two user requests race for the last budget unit; the per-user
	// lock does not order them, the budget guard does
	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	if _, err := committer.Commit(context.Background(), commitReq(seg, false)); err != nil {
		t.Fatalf("expected first commit to succeed, got %v", err)
	}

	req := commitReq(seg, false)
	req.UserID = "u2"
	_, err := committer.Commit(context.Background(), req)
	if err == nil {
		t.Fatalf("expected second commit to hit the guard")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCommitConflict {
		t.Errorf("expected commit conflict code, got %v", err)
	}

	// the loser must not burn a rolling-window spin it never got
	if len(spins.spins) != 1 {
		t.Errorf("expected 1 record for 1 successful spin, got %d", len(spins.spins))
	}
	if budgets.ledger.TotalSpins != 6 {
		t.Errorf("expected 6 total spins after one success, got %d", budgets.ledger.TotalSpins)
	}
}

func TestCommitBonusConsumeFailureRevertsSpend(t *testing.T) {
	stores, budgets, spins, bonus, _ := commitFixture()
	bonus.balance = 1
	bonus.failConsume = true
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	_, err := committer.Commit(context.Background(), commitReq(seg, true))
	if err == nil {
		t.Fatalf("expected no-bonus-spin error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrNoBonusSpin {
		t.Errorf("expected no-bonus-spin code, got %v", err)
	}
	if budgets.revertCalls != 1 {
		t.Errorf("expected the applied spend to be reverted, got %d reverts", budgets.revertCalls)
	}
	if !budgets.ledger.BudgetSpent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected spent back at 10, got %s", budgets.ledger.BudgetSpent)
	}
	if len(spins.spins) != 0 {
		t.Errorf("expected no record written, got %d", len(spins.spins))
	}
}

func TestCommitRevalidatesSpinCap(t *testing.T) {
	stores, _, spins, _, _ := commitFixture()
	spins.window = WindowCount{Count: 1, Oldest: time.Now().Add(-time.Hour)}
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	_, err := committer.Commit(context.Background(), commitReq(seg, false))
	if err == nil {
		t.Fatalf("expected spin limit error from revalidation")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrSpinLimitReached {
		t.Errorf("expected spin limit code, got %v", err)
	}
	if len(spins.spins) != 0 {
		t.Errorf("expected no record written, got %d", len(spins.spins))
	}
}

func TestCommitConsumesBonusSpin(t *testing.T) {
	stores, _, _, bonus, _ := commitFixture()
	bonus.balance = 1
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	outcome, err := committer.Commit(context.Background(), commitReq(seg, true))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bonus.balance != 0 {
		t.Errorf("expected bonus balance 0 after consume, got %d", bonus.balance)
	}
	if !outcome.Record.UsedBonusSpin {
		t.Errorf("expected record to mark the bonus spin")
	}
}

func TestCommitRejectsMissingBonusSpin(t *testing.T) {
	stores, _, spins, bonus, _ := commitFixture()
	bonus.balance = 0
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	_, err := committer.Commit(context.Background(), commitReq(seg, true))
	if err == nil {
		t.Fatalf("expected no-bonus-spin error")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrNoBonusSpin {
		t.Errorf("expected no-bonus-spin code, got %v", err)
	}
	if len(spins.spins) != 0 {
		t.Errorf("expected revalidation to reject before writing, got %d records", len(spins.spins))
	}
}

func TestCommitGrantsBonusOnRespin(t *testing.T) {
	stores, _, _, bonus, _ := commitFixture()
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "respin", Order: 5, Type: SegmentRespin, Cost: decimal.Zero}
	outcome, err := committer.Commit(context.Background(), commitReq(seg, false))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !outcome.BonusGranted {
		t.Errorf("expected bonus granted on respin win")
	}
	if bonus.balance != 1 {
		t.Errorf("expected bonus balance 1, got %d", bonus.balance)
	}
}

func TestCommitRespinAtCapSkipsGrant(t *testing.T) {
	stores, _, _, bonus, _ := commitFixture()
	bonus.balance = DefaultPolicy().MaxBankedSpins
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "respin", Order: 5, Type: SegmentRespin, Cost: decimal.Zero}
	outcome, err := committer.Commit(context.Background(), commitReq(seg, false))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if outcome.BonusGranted {
		t.Errorf("expected no grant when the bank is full")
	}
	if bonus.balance != DefaultPolicy().MaxBankedSpins {
		t.Errorf("expected balance unchanged at cap, got %d", bonus.balance)
	}
}

func TestCommitNetZeroBonusSpin(t *testing.T) {
	stores, _, _, bonus, _ := commitFixture()
	bonus.balance = DefaultPolicy().MaxBankedSpins
	committer := NewBestEffortCommit(stores, DefaultPolicy(), zerolog.Nop())

	// consuming the banked spin and winning respin again nets to zero,
	// so the balance stays put even at the cap
	seg := &Segment{ID: "respin", Order: 5, Type: SegmentRespin, Cost: decimal.Zero}
	outcome, err := committer.Commit(context.Background(), commitReq(seg, true))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !outcome.BonusGranted {
		t.Errorf("expected the replaced spin to count as granted")
	}
	if bonus.balance != DefaultPolicy().MaxBankedSpins {
		t.Errorf("expected balance unchanged, got %d", bonus.balance)
	}
}

func TestTransactionalCommitUsesTransaction(t *testing.T) {
	stores, _, _, _, _ := commitFixture()
	tx := &passthroughTx{}
	committer := NewTransactionalCommit(tx, stores, DefaultPolicy(), zerolog.Nop())

	seg := &Segment{ID: "s1", Order: 2, Type: SegmentCash, Cost: decimal.NewFromInt(5)}
	if _, err := committer.Commit(context.Background(), commitReq(seg, false)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tx.calls != 1 {
		t.Errorf("expected exactly one transaction, got %d", tx.calls)
	}
}

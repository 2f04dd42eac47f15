package server

import (
	"context"
	"time"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/Digital-Creators-Team/prize-wheel-module/pkg/feed"
	"github.com/Digital-Creators-Team/prize-wheel-module/pkg/providers"
	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
	"github.com/rs/zerolog"
)

// SpinService is the engine facade the HTTP layer talks to
type SpinService interface {
	// Spin runs one complete spin for the user against the live campaign
	Spin(ctx context.Context, userID string) (*wheel.SpinResult, error)
	// State returns the wheel layout and the user's current entitlements
	State(ctx context.Context, userID string) (*wheel.WheelState, error)
	// History returns the user's most recent spins, newest first
	History(ctx context.Context, userID string, limit int) ([]wheel.SpinRecord, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// WheelSpinService orchestrates eligibility, selection, commit, and the
// post-commit side effects for every spin
type WheelSpinService struct {
	stores    wheel.Stores
	table     *wheel.SegmentTable
	policy    wheel.Policy
	checker   *wheel.EligibilityChecker
	selector  *wheel.WeightedSelector
	committer wheel.CommitStrategy
	locker    wheel.Locker
	wallet    providers.WalletProvider
	publisher providers.SpinPublisher
	feed      *feed.Service
	logger    zerolog.Logger
	now       func() time.Time
}

// WheelSpinServiceConfig bundles the service dependencies
type WheelSpinServiceConfig struct {
	Stores    wheel.Stores
	Table     *wheel.SegmentTable
	Policy    wheel.Policy
	Committer wheel.CommitStrategy
	Locker    wheel.Locker
	Wallet    providers.WalletProvider
	Publisher providers.SpinPublisher
	Feed      *feed.Service
	Logger    zerolog.Logger
}

// NewWheelSpinService creates the spin orchestration service
func NewWheelSpinService(cfg WheelSpinServiceConfig) *WheelSpinService {
	return &WheelSpinService{
		stores:    cfg.Stores,
		table:     cfg.Table,
		policy:    cfg.Policy,
		checker:   wheel.NewEligibilityChecker(cfg.Stores.Spins, cfg.Stores.Bonus, cfg.Policy),
		selector:  wheel.NewWeightedSelector(cfg.Policy),
		committer: cfg.Committer,
		locker:    cfg.Locker,
		wallet:    cfg.Wallet,
		publisher: cfg.Publisher,
		feed:      cfg.Feed,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (s *WheelSpinService) WithClock(now func() time.Time) *WheelSpinService {
	s.now = now
	s.checker.WithClock(now)
	return s
}

// Spin executes the full spin pipeline under the user's lock. All reads
// and the commit happen while the lock is held so a user can never have
// two spins in flight.
func (s *WheelSpinService) Spin(ctx context.Context, userID string) (*wheel.SpinResult, error) {
	var result *wheel.SpinResult

	err := s.locker.WithLock(ctx, "spin:"+userID, func() error {
		var err error
		result, err = s.spinLocked(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *WheelSpinService) spinLocked(ctx context.Context, userID string) (*wheel.SpinResult, error) {
	campaign, rules, ledger, err := s.loadCampaignState(ctx)
	if err != nil {
		return nil, err
	}

	decision, err := s.checker.Check(ctx, userID, campaign.ID, rules)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to check spin eligibility")
	}
	if !decision.Eligible {
		return nil, apperrors.New(apperrors.ErrSpinLimitReached, decision.Message)
	}

	since := s.now().Add(-s.policy.RewardWindow)
	stats, err := s.stores.Spins.RewardStats(ctx, userID, campaign.ID, since,
		s.policy.HighCostThreshold, s.policy.MidCostThreshold)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load reward stats")
	}

	segment, err := s.selector.Select(wheel.SelectionInput{
		Table:          s.table,
		Ledger:         ledger,
		Rules:          rules,
		UsingBonusSpin: decision.UseBonusSpin,
		RewardStats:    stats,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := s.committer.Commit(ctx, wheel.CommitRequest{
		UserID:       userID,
		Campaign:     campaign,
		Rules:        rules,
		Segment:      segment,
		UseBonusSpin: decision.UseBonusSpin,
	})
	if err != nil {
		return nil, err
	}

	record := outcome.Record
	s.logger.Info().
		Str("user_id", userID).
		Str("campaign_id", campaign.ID).
		Str("spin_id", record.ID).
		Str("segment_id", record.SegmentID).
		Str("reward_type", string(record.RewardType)).
		Str("cost", record.Cost.String()).
		Bool("used_bonus_spin", record.UsedBonusSpin).
		Bool("bonus_granted", outcome.BonusGranted).
		Msg("Spin committed")

	s.creditReward(ctx, record)
	s.publishSpin(ctx, record)
	s.publishBudget(ctx, campaign.ID)

	return s.buildResult(record, outcome.BonusGranted), nil
}

func (s *WheelSpinService) loadCampaignState(ctx context.Context) (*wheel.Campaign, *wheel.FairnessRules, *wheel.BudgetLedger, error) {
	campaign, err := s.stores.Campaigns.Live(ctx)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load live campaign")
	}
	if campaign == nil {
		return nil, nil, nil, apperrors.New(apperrors.ErrNoLiveCampaign, "no live campaign is running")
	}

	rules, err := s.stores.Campaigns.RulesFor(ctx, campaign.ID)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load fairness rules")
	}
	if rules == nil {
		return nil, nil, nil, apperrors.New(apperrors.ErrRulesMissing, "campaign has no fairness rules configured")
	}

	ledger, err := s.stores.Budgets.Ledger(ctx, campaign.ID)
	if err != nil {
		return nil, nil, nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load budget ledger")
	}
	if ledger == nil {
		return nil, nil, nil, apperrors.New(apperrors.ErrBudgetMissing, "campaign has no budget ledger configured")
	}

	return campaign, rules, ledger, nil
}

// buildResult assembles the response from the committed record. The
// static table entry at the record's order is authoritative for the
// reward fields the UI renders, so a disagreement is corrected from the
// table and logged as a data defect.
func (s *WheelSpinService) buildResult(record *wheel.SpinRecord, bonusGranted bool) *wheel.SpinResult {
	segment, ok := s.table.ByOrder(record.SegmentOrder)
	if !ok || segment.ID != record.SegmentID || segment.Type != record.RewardType {
		s.logger.Error().
			Str("spin_id", record.ID).
			Int("segment_order", record.SegmentOrder).
			Str("segment_id", record.SegmentID).
			Msg("Spin record disagrees with segment table")
		if byID, found := s.table.ByID(record.SegmentID); found {
			segment = byID
		}
	}
	if segment == nil {
		// unreachable with a validated table, but never return a nil deref
		return &wheel.SpinResult{
			SpinID:        record.ID,
			SegmentID:     record.SegmentID,
			SegmentOrder:  record.SegmentOrder,
			RewardType:    record.RewardType,
			Cost:          record.Cost,
			UsedBonusSpin: record.UsedBonusSpin,
			BonusGranted:  bonusGranted,
		}
	}

	return &wheel.SpinResult{
		SpinID:        record.ID,
		SegmentID:     segment.ID,
		SegmentOrder:  segment.Order,
		RewardType:    segment.Type,
		RewardLabel:   segment.Label,
		RewardValue:   segment.RewardValue(),
		RewardColor:   segment.Color,
		Cost:          segment.Cost,
		UsedBonusSpin: record.UsedBonusSpin,
		BonusGranted:  bonusGranted,
	}
}

// creditReward pushes the monetary prize to the wallet service. The spin
// is already committed, so a wallet failure is logged for reconciliation
// instead of failing the request.
func (s *WheelSpinService) creditReward(ctx context.Context, record *wheel.SpinRecord) {
	if s.wallet == nil {
		return
	}

	segment, ok := s.table.ByID(record.SegmentID)
	if !ok {
		return
	}

	var err error
	switch segment.Type {
	case wheel.SegmentCash:
		err = s.wallet.CreditCash(ctx, record.UserID, segment.Value, record.ID)
	case wheel.SegmentPercent:
		err = s.wallet.CreditPercent(ctx, record.UserID, segment.Value, record.ID)
	default:
		return
	}

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("spin_id", record.ID).
			Str("user_id", record.UserID).
			Str("segment_id", record.SegmentID).
			Msg("Failed to credit wallet, spin record kept for reconciliation")
	}
}

func (s *WheelSpinService) publishSpin(ctx context.Context, record *wheel.SpinRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSpin(ctx, record); err != nil {
		s.logger.Error().
			Err(err).
			Str("spin_id", record.ID).
			Msg("Failed to publish spin event")
	}
}

// publishBudget pushes the post-commit budget snapshot to the live feed
func (s *WheelSpinService) publishBudget(ctx context.Context, campaignID string) {
	if s.feed == nil {
		return
	}
	ledger, err := s.stores.Budgets.Ledger(ctx, campaignID)
	if err != nil || ledger == nil {
		return
	}
	s.feed.Publish(feed.Update{
		CampaignID:      campaignID,
		BudgetRemaining: ledger.Remaining(),
		BudgetSpent:     ledger.BudgetSpent,
		TotalSpins:      ledger.TotalSpins,
		PaceRatio:       ledger.PaceRatio(),
		Timestamp:       s.now(),
	})
}

// State builds the pre-spin read model: the full segment layout with
// each segment's current win chance, plus whether this user may spin
// right now and why not
func (s *WheelSpinService) State(ctx context.Context, userID string) (*wheel.WheelState, error) {
	campaign, rules, ledger, err := s.loadCampaignState(ctx)
	if err != nil {
		return nil, err
	}

	decision, err := s.checker.Check(ctx, userID, campaign.ID, rules)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to check spin eligibility")
	}

	balance, err := s.stores.Bonus.Balance(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load bonus balance")
	}

	since := s.now().Add(-s.policy.RewardWindow)
	stats, err := s.stores.Spins.RewardStats(ctx, userID, campaign.ID, since,
		s.policy.HighCostThreshold, s.policy.MidCostThreshold)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load reward stats")
	}

	chances := s.selector.WinChances(wheel.SelectionInput{
		Table:          s.table,
		Ledger:         ledger,
		Rules:          rules,
		UsingBonusSpin: decision.UseBonusSpin,
		RewardStats:    stats,
	})

	all := s.table.All()
	segments := make([]wheel.SegmentView, 0, len(all))
	for _, seg := range all {
		segments = append(segments, wheel.SegmentView{Segment: seg, WinChance: chances[seg.ID]})
	}

	return &wheel.WheelState{
		CampaignID:     campaign.ID,
		Segments:       segments,
		CanSpin:        decision.Eligible,
		Message:        decision.Message,
		BonusSpins:     balance,
		ResetAt:        decision.ResetAt,
		SpinsRemaining: decision.SpinsRemaining,
	}, nil
}

// History returns the user's latest spins against the live campaign
func (s *WheelSpinService) History(ctx context.Context, userID string, limit int) ([]wheel.SpinRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	campaign, err := s.stores.Campaigns.Live(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load live campaign")
	}
	if campaign == nil {
		return nil, apperrors.New(apperrors.ErrNoLiveCampaign, "no live campaign is running")
	}

	records, err := s.stores.Spins.RecentByUser(ctx, userID, campaign.ID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServerError, "failed to load spin history")
	}
	return records, nil
}

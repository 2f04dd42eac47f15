package wheel

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CommitRequest carries one selected outcome into persistence
type CommitRequest struct {
	UserID       string
	Campaign     *Campaign
	Rules        *FairnessRules
	Segment      *Segment
	UseBonusSpin bool
}

// CommitOutcome reports what a commit actually persisted
type CommitOutcome struct {
	Record *SpinRecord
	// BonusGranted is true when the spin banked a bonus spin for the
	// user. A respin win at the balance cap does not grant.
	BonusGranted bool
}

// CommitStrategy makes a selected segment permanent: one spin record,
// one budget mutation, one bonus-balance delta, all together or not at
// all. The strategy is chosen once at startup based on what the store
// supports.
type CommitStrategy interface {
	Commit(ctx context.Context, req CommitRequest) (*CommitOutcome, error)
}

// commitCore holds the write sequence shared by both strategies
type commitCore struct {
	stores Stores
	policy Policy
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func newCommitCore(stores Stores, policy Policy, logger zerolog.Logger) commitCore {
	return commitCore{
		stores: stores,
		policy: policy,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// revalidate re-runs the eligibility decision against current state.
// Two requests can both pass the advisory pre-check; only one may pass
// here once the first has committed.
func (c *commitCore) revalidate(ctx context.Context, req CommitRequest) error {
	if req.UseBonusSpin {
		balance, err := c.stores.Bonus.Balance(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("re-read bonus balance: %w", err)
		}
		if balance < 1 {
			return apperrors.New(apperrors.ErrNoBonusSpin, "bonus spin no longer available")
		}
		return nil
	}

	if req.Rules.Unlimited() {
		return nil
	}
	since := c.now().Add(-c.policy.SpinWindow)
	window, err := c.stores.Spins.CountSpins(ctx, req.UserID, req.Campaign.ID, since)
	if err != nil {
		return fmt.Errorf("re-count window spins: %w", err)
	}
	if window.Count >= req.Rules.SpinsPerDay {
		return apperrors.New(apperrors.ErrSpinLimitReached, "spin limit reached")
	}
	return nil
}

// run executes the write sequence. The budget spend and the bonus
// consume go first and are compensated on later failures, so a rejected
// commit never leaves a spin record behind. The spin history feeds the
// rate-limit window; a record for a spin that awarded nothing would
// silently consume one of the user's spins even outside a transaction.
func (c *commitCore) run(ctx context.Context, req CommitRequest) (*CommitOutcome, error) {
	if err := c.revalidate(ctx, req); err != nil {
		return nil, err
	}

	seg := req.Segment
	applied, err := c.stores.Budgets.ApplySpend(ctx, req.Campaign.ID, seg.Cost)
	if err != nil {
		return nil, fmt.Errorf("apply budget spend: %w", err)
	}
	if !applied {
		// another commit drained the budget between selection and here
		c.logger.Warn().
			Str("campaign_id", req.Campaign.ID).
			Str("segment_id", seg.ID).
			Str("cost", seg.Cost.String()).
			Msg("budget guard rejected spend")
		return nil, apperrors.New(apperrors.ErrCommitConflict, "budget no longer covers this reward")
	}

	if req.UseBonusSpin {
		ok, err := c.stores.Bonus.Apply(ctx, req.UserID, -1, c.policy.MaxBankedSpins)
		if err != nil {
			c.revertSpend(ctx, req.Campaign.ID, seg.Cost)
			return nil, fmt.Errorf("consume bonus spin: %w", err)
		}
		if !ok {
			c.revertSpend(ctx, req.Campaign.ID, seg.Cost)
			return nil, apperrors.New(apperrors.ErrNoBonusSpin, "bonus spin no longer available")
		}
	}

	record := &SpinRecord{
		ID:            c.newID(),
		UserID:        req.UserID,
		CampaignID:    req.Campaign.ID,
		SegmentID:     seg.ID,
		SegmentOrder:  seg.Order,
		RewardType:    seg.Type,
		Cost:          seg.Cost,
		UsedBonusSpin: req.UseBonusSpin,
		CreatedAt:     c.now(),
	}
	if err := c.stores.Spins.Append(ctx, record); err != nil {
		if req.UseBonusSpin {
			if _, grantErr := c.stores.Bonus.Apply(ctx, req.UserID, 1, c.policy.MaxBankedSpins); grantErr != nil {
				c.logger.Error().Err(grantErr).
					Str("user_id", req.UserID).
					Msg("Failed to restore consumed bonus spin")
			}
		}
		c.revertSpend(ctx, req.Campaign.ID, seg.Cost)
		return nil, fmt.Errorf("append spin record: %w", err)
	}

	if err := c.stores.Stats.IncrementWin(ctx, req.Campaign.ID, seg.ID); err != nil {
		// the counter is reporting only and the spin is already durable
		c.logger.Error().Err(err).
			Str("campaign_id", req.Campaign.ID).
			Str("segment_id", seg.ID).
			Msg("Failed to increment segment win counter")
	}

	outcome := &CommitOutcome{Record: record}
	if seg.Type == SegmentRespin {
		ok, err := c.stores.Bonus.Apply(ctx, req.UserID, 1, c.policy.MaxBankedSpins)
		if err != nil {
			c.logger.Error().Err(err).
				Str("user_id", req.UserID).
				Str("spin_id", record.ID).
				Msg("Failed to grant bonus spin")
		}
		outcome.BonusGranted = err == nil && ok
	}

	return outcome, nil
}

// revertSpend undoes an applied spend during compensation. A failure
// here leaves the budget over-counted; it is logged rather than
// propagated.
func (c *commitCore) revertSpend(ctx context.Context, campaignID string, cost decimal.Decimal) {
	if err := c.stores.Budgets.RevertSpend(ctx, campaignID, cost); err != nil {
		c.logger.Error().Err(err).
			Str("campaign_id", campaignID).
			Str("cost", cost.String()).
			Msg("Failed to revert budget spend")
	}
}

// TransactionalCommit runs the whole write sequence inside one storage
// transaction. This is the default and the only path that is safe when
// several server processes share the store.
type TransactionalCommit struct {
	core commitCore
	tx   TxProvider
}

// NewTransactionalCommit builds the transactional strategy
func NewTransactionalCommit(tx TxProvider, stores Stores, policy Policy, logger zerolog.Logger) *TransactionalCommit {
	return &TransactionalCommit{core: newCommitCore(stores, policy, logger), tx: tx}
}

func (t *TransactionalCommit) Commit(ctx context.Context, req CommitRequest) (*CommitOutcome, error) {
	var outcome *CommitOutcome
	err := t.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = t.core.run(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// BestEffortCommit runs the write sequence without transactional
// isolation, re-checking eligibility immediately before writing. It is
// only acceptable for single-instance deployments where the local lock
// already serializes each user's spins.
type BestEffortCommit struct {
	core commitCore
}

// NewBestEffortCommit builds the non-transactional fallback strategy
func NewBestEffortCommit(stores Stores, policy Policy, logger zerolog.Logger) *BestEffortCommit {
	return &BestEffortCommit{core: newCommitCore(stores, policy, logger)}
}

func (b *BestEffortCommit) Commit(ctx context.Context, req CommitRequest) (*CommitOutcome, error) {
	return b.core.run(ctx, req)
}

// WithClock overrides the commit timestamp source, used by tests
func (b *BestEffortCommit) WithClock(now func() time.Time) *BestEffortCommit {
	b.core.now = now
	return b
}

// WithClock overrides the commit timestamp source, used by tests
func (t *TransactionalCommit) WithClock(now func() time.Time) *TransactionalCommit {
	t.core.now = now
	return t
}

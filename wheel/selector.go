package wheel

import (
	"math"
	"math/rand"

	apperrors "github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/samber/lo"
)

// SelectionInput carries everything a single draw depends on
type SelectionInput struct {
	Table  *SegmentTable
	Ledger *BudgetLedger
	Rules  *FairnessRules
	// UsingBonusSpin is true when this spin consumes a banked bonus spin
	UsingBonusSpin bool
	// RewardStats are the user's capped wins inside the reward window
	RewardStats RewardWindowStats
}

// WeightedSelector implements the cost-aware weighted draw. As campaign
// spend outpaces plan, expensive segments are exponentially suppressed
// while zero-cost segments keep a weight floor.
type WeightedSelector struct {
	policy Policy
	rnd    func() float64
}

// NewWeightedSelector builds a selector with the default random source
func NewWeightedSelector(policy Policy) *WeightedSelector {
	return &WeightedSelector{policy: policy, rnd: rand.Float64}
}

// WithRand overrides the random source, used by tests
func (s *WeightedSelector) WithRand(rnd func() float64) *WeightedSelector {
	s.rnd = rnd
	return s
}

// Dampening converts a pace ratio into the weight-suppression exponent.
// Below the grace ratio it is zero; past it, it grows linearly.
func (s *WeightedSelector) Dampening(paceRatio float64) float64 {
	return math.Max(0, (paceRatio-s.policy.GraceRatio)*s.policy.DampeningSlope)
}

// EligibleSegments narrows the enabled segment set by budget state,
// bonus-spin chaining rules, and the per-user reward caps.
func (s *WeightedSelector) EligibleSegments(in SelectionInput) ([]Segment, error) {
	enabled := in.Table.Enabled()

	var eligible []Segment
	if in.Ledger.Exhausted() || in.Ledger.HardCrunch(s.policy) {
		eligible = lo.Filter(enabled, func(seg Segment, _ int) bool { return seg.IsZeroCost() })
	} else {
		remaining := in.Ledger.Remaining()
		eligible = lo.Filter(enabled, func(seg Segment, _ int) bool {
			return seg.Cost.LessThanOrEqual(remaining)
		})
		if len(eligible) == 0 {
			eligible = lo.Filter(enabled, func(seg Segment, _ int) bool { return seg.IsZeroCost() })
		}
	}

	if in.UsingBonusSpin && in.Rules.FreeSpinCannotTriggerFreeSpin {
		eligible = lo.Filter(eligible, func(seg Segment, _ int) bool { return seg.Type != SegmentRespin })
	}

	if in.RewardStats.RespinWins >= s.policy.RespinMaxWins {
		eligible = lo.Filter(eligible, func(seg Segment, _ int) bool { return seg.Type != SegmentRespin })
	}
	if in.RewardStats.HighCostWins >= s.policy.HighCostMaxWins {
		eligible = lo.Filter(eligible, func(seg Segment, _ int) bool {
			return seg.Cost.LessThan(s.policy.HighCostThreshold)
		})
	}
	if in.RewardStats.MidCostWins >= s.policy.MidCostMaxWins {
		eligible = lo.Filter(eligible, func(seg Segment, _ int) bool {
			return seg.Cost.LessThan(s.policy.MidCostThreshold)
		})
	}

	if len(eligible) == 0 {
		return nil, apperrors.New(apperrors.ErrSelectionExhausted,
			"no eligible segments remain after filtering")
	}

	return eligible, nil
}

// Weight computes a single segment's draw weight under the given
// dampening, applying the zero-cost floor.
func (s *WeightedSelector) Weight(seg *Segment, dampening float64) float64 {
	cost, _ := seg.Cost.Float64()
	w := math.Exp(-cost * dampening)
	if seg.IsZeroCost() && w < s.policy.ZeroCostFloor {
		w = s.policy.ZeroCostFloor
	}
	return w
}

// WinChances returns each segment's current draw probability keyed by
// segment id, for display on the state endpoint. Segments the filters
// exclude map to zero; when nothing is eligible every chance is zero.
// Rounded to four decimals so responses stay stable across float noise.
func (s *WeightedSelector) WinChances(in SelectionInput) map[string]float64 {
	chances := make(map[string]float64, in.Table.Len())

	eligible, err := s.EligibleSegments(in)
	if err != nil {
		return chances
	}

	dampening := s.Dampening(in.Ledger.PaceRatio())
	weights := make([]float64, len(eligible))
	total := 0.0
	for i := range eligible {
		weights[i] = s.Weight(&eligible[i], dampening)
		total += weights[i]
	}
	if total <= 0 {
		return chances
	}

	for i := range eligible {
		chances[eligible[i].ID] = math.Round(weights[i]/total*10000) / 10000
	}
	return chances
}

// Select runs one full draw: filters the eligible set, computes weights
// from the ledger's pace ratio, and picks one segment at random.
func (s *WeightedSelector) Select(in SelectionInput) (*Segment, error) {
	eligible, err := s.EligibleSegments(in)
	if err != nil {
		return nil, err
	}

	dampening := s.Dampening(in.Ledger.PaceRatio())

	weights := make([]float64, len(eligible))
	total := 0.0
	for i := range eligible {
		weights[i] = s.Weight(&eligible[i], dampening)
		total += weights[i]
	}

	r := s.rnd() * total
	for i := range eligible {
		r -= weights[i]
		if r <= 0 {
			return &eligible[i], nil
		}
	}

	// float rounding can leave a sliver past the last weight
	return &eligible[len(eligible)-1], nil
}

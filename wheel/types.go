package wheel

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignDraft CampaignStatus = "draft"
	CampaignLive  CampaignStatus = "live"
	CampaignEnded CampaignStatus = "ended"
)

// Campaign represents a promotional wheel campaign.
// At most one campaign is live at a time; the engine operates only against it.
type Campaign struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Status    CampaignStatus `json:"status" db:"status"`
	StartsAt  time.Time      `json:"startsAt" db:"starts_at"`
	EndsAt    time.Time      `json:"endsAt" db:"ends_at"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// IsLive returns true if the campaign accepts spins
func (c *Campaign) IsLive() bool {
	return c.Status == CampaignLive
}

// SpinRecord is the append-only audit record of one committed spin.
// Records are never updated or deleted; all rate-limit queries count
// against this history rather than a separately maintained counter.
type SpinRecord struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"userId" db:"user_id"`
	CampaignID    string          `json:"campaignId" db:"campaign_id"`
	SegmentID     string          `json:"segmentId" db:"segment_id"`
	SegmentOrder  int             `json:"segmentOrder" db:"segment_order"`
	RewardType    SegmentType     `json:"rewardType" db:"reward_type"`
	Cost          decimal.Decimal `json:"cost" db:"cost"`
	UsedBonusSpin bool            `json:"usedBonusSpin" db:"used_bonus_spin"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// SpinResult is the outcome returned to the HTTP layer.
// SegmentOrder is the index into the static segment table; the wheel UI
// uses it to land the animation on the matching slice, so the reward
// fields must always agree with the table entry at that index.
type SpinResult struct {
	SpinID        string      `json:"spinId"`
	SegmentID     string      `json:"segmentId"`
	SegmentOrder  int         `json:"segmentOrder"`
	RewardType    SegmentType `json:"rewardType"`
	RewardLabel   string      `json:"rewardLabel"`
	RewardValue   *string     `json:"rewardValue"`
	RewardColor   string      `json:"rewardColor"`
	Cost          decimal.Decimal `json:"cost"`
	UsedBonusSpin bool        `json:"usedBonusSpin"`
	BonusGranted  bool        `json:"bonusGranted"`
}

// SegmentView is a segment enriched with the display values the state
// endpoint derives for the UI
type SegmentView struct {
	Segment
	// WinChance is the segment's current draw probability under the
	// live budget state, zero when the filters exclude it
	WinChance float64 `json:"winChance"`
}

// WheelState is the read model served to the UI before a spin:
// the segment layout plus what the caller may do right now.
type WheelState struct {
	CampaignID     string        `json:"campaignId"`
	Segments       []SegmentView `json:"segments"`
	CanSpin        bool      `json:"canSpin"`
	Message        string    `json:"message,omitempty"`
	BonusSpins     int       `json:"bonusSpins"`
	ResetAt        *time.Time `json:"resetAt,omitempty"`
	SpinsRemaining int       `json:"spinsRemaining"`
}

// SegmentStat is the per-segment win counter kept for reporting
type SegmentStat struct {
	CampaignID string    `json:"campaignId" db:"campaign_id"`
	SegmentID  string    `json:"segmentId" db:"segment_id"`
	Wins       int64     `json:"wins" db:"wins"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

package cached

import (
	"context"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/prize-wheel-module/wheel"
)

// CampaignStore caches live-campaign and fairness-rules lookups in
// front of another store. Every spin consults both, and campaign
// configuration changes rarely; the cache is dropped on TTL expiry or
// when an admin event arrives through Invalidate.
type CampaignStore struct {
	inner wheel.CampaignStore
	ttl   time.Duration

	mu        sync.RWMutex
	live      *wheel.Campaign
	liveAt    time.Time
	liveSet   bool
	rules     map[string]*wheel.FairnessRules
	rulesAt   map[string]time.Time
}

// NewCampaignStore wraps a store with a TTL cache
func NewCampaignStore(inner wheel.CampaignStore, ttl time.Duration) *CampaignStore {
	return &CampaignStore{
		inner:   inner,
		ttl:     ttl,
		rules:   make(map[string]*wheel.FairnessRules),
		rulesAt: make(map[string]time.Time),
	}
}

func (c *CampaignStore) Live(ctx context.Context) (*wheel.Campaign, error) {
	c.mu.RLock()
	if c.liveSet && time.Since(c.liveAt) < c.ttl {
		live := c.live
		c.mu.RUnlock()
		return live, nil
	}
	c.mu.RUnlock()

	live, err := c.inner.Live(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.live = live
	c.liveAt = time.Now()
	c.liveSet = true
	c.mu.Unlock()

	return live, nil
}

func (c *CampaignStore) RulesFor(ctx context.Context, campaignID string) (*wheel.FairnessRules, error) {
	c.mu.RLock()
	if at, ok := c.rulesAt[campaignID]; ok && time.Since(at) < c.ttl {
		rules := c.rules[campaignID]
		c.mu.RUnlock()
		return rules, nil
	}
	c.mu.RUnlock()

	rules, err := c.inner.RulesFor(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.rules[campaignID] = rules
	c.rulesAt[campaignID] = time.Now()
	c.mu.Unlock()

	return rules, nil
}

// OnCampaignChanged implements the campaign-event handler; any admin
// change drops the whole cache rather than patching entries
func (c *CampaignStore) OnCampaignChanged(campaignID string) {
	c.Invalidate()
}

// Invalidate drops everything cached, forcing fresh reads
func (c *CampaignStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = nil
	c.liveSet = false
	c.rules = make(map[string]*wheel.FairnessRules)
	c.rulesAt = make(map[string]time.Time)
}

package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultFlushInterval is how often buffered updates are broadcast
const DefaultFlushInterval = 2 * time.Second

// Service buffers budget-ledger snapshots and broadcasts them at a
// fixed cadence. Spins commit far more often than dashboards need to
// repaint, so only the latest snapshot per campaign survives a flush
// window.
type Service struct {
	mu       sync.Mutex
	buffer   map[string]Update
	broad    *Broadcaster
	logger   zerolog.Logger
	interval time.Duration
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates and starts a feed service
func NewService(cfg ServiceConfig, logger zerolog.Logger) *Service {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	s := &Service{
		buffer:   make(map[string]Update),
		broad:    NewBroadcaster(128),
		logger:   logger.With().Str("component", "budget_feed").Logger(),
		interval: interval,
		stopChan: make(chan struct{}),
	}
	s.ticker = time.NewTicker(s.interval)
	go s.loop()
	return s
}

// Publish buffers a snapshot; newer snapshots for the same campaign
// replace older unflushed ones
func (s *Service) Publish(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.buffer[update.CampaignID]; ok && update.Timestamp.Before(existing.Timestamp) {
		return
	}
	s.buffer[update.CampaignID] = update
}

// Listen returns a channel of flushed updates plus a cancel function
func (s *Service) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	return s.broad.Listen(ctx)
}

// Stop halts the flush loop
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.ticker.Stop()
		close(s.stopChan)
	})
}

func (s *Service) loop() {
	for {
		select {
		case <-s.stopChan:
			return
		case <-s.ticker.C:
			s.flush()
		}
	}
}

func (s *Service) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	updates := lo.Values(s.buffer)
	s.buffer = make(map[string]Update)
	s.mu.Unlock()

	for _, u := range updates {
		s.broad.Send(u)
	}
	if s.logger.GetLevel() <= zerolog.DebugLevel {
		s.logger.Debug().Int("count", len(updates)).Msg("flushed budget updates")
	}
}

package feed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func update(campaignID string, spins int64, at time.Time) Update {
	return Update{
		CampaignID:      campaignID,
		BudgetRemaining: decimal.NewFromInt(100),
		BudgetSpent:     decimal.NewFromInt(50),
		TotalSpins:      spins,
		PaceRatio:       1.0,
		Timestamp:       at,
	}
}

func waitForUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
		return Update{}
	}
}

func TestServiceFlushesBufferedUpdates(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 20 * time.Millisecond}, zerolog.Nop())
	defer svc.Stop()

	ch, cancel := svc.Listen(context.Background())
	defer cancel()

	svc.Publish(update("c1", 10, time.Now()))

	got := waitForUpdate(t, ch)
	if got.CampaignID != "c1" || got.TotalSpins != 10 {
		t.Errorf("expected c1 with 10 spins, got %s with %d", got.CampaignID, got.TotalSpins)
	}
}

func TestServiceKeepsLatestPerCampaign(t *testing.T) {
	// long interval so both publishes land in the same flush window
	svc := NewService(ServiceConfig{FlushInterval: 100 * time.Millisecond}, zerolog.Nop())
	defer svc.Stop()

	ch, cancel := svc.Listen(context.Background())
	defer cancel()

	now := time.Now()
	svc.Publish(update("c1", 10, now))
	svc.Publish(update("c1", 11, now.Add(time.Millisecond)))

	got := waitForUpdate(t, ch)
	if got.TotalSpins != 11 {
		t.Errorf("expected the newer snapshot, got %d spins", got.TotalSpins)
	}

	select {
	case extra := <-ch:
		t.Errorf("expected one update per campaign per flush, got extra %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestServiceIgnoresStaleSnapshot(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 100 * time.Millisecond}, zerolog.Nop())
	defer svc.Stop()

	ch, cancel := svc.Listen(context.Background())
	defer cancel()

	now := time.Now()
	svc.Publish(update("c1", 11, now))
	svc.Publish(update("c1", 10, now.Add(-time.Second)))

	got := waitForUpdate(t, ch)
	if got.TotalSpins != 11 {
		t.Errorf("expected stale snapshot to be dropped, got %d spins", got.TotalSpins)
	}
}

func TestServiceFansOutToAllListeners(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 20 * time.Millisecond}, zerolog.Nop())
	defer svc.Stop()

	ch1, cancel1 := svc.Listen(context.Background())
	defer cancel1()
	ch2, cancel2 := svc.Listen(context.Background())
	defer cancel2()

	svc.Publish(update("c1", 10, time.Now()))

	for i, ch := range []<-chan Update{ch1, ch2} {
		got := waitForUpdate(t, ch)
		if got.CampaignID != "c1" {
			t.Errorf("listener %d: expected c1, got %s", i, got.CampaignID)
		}
	}
}

func TestServiceStopHaltsFlushing(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 20 * time.Millisecond}, zerolog.Nop())

	ch, cancel := svc.Listen(context.Background())
	defer cancel()

	svc.Stop()
	svc.Stop() // idempotent

	svc.Publish(update("c1", 10, time.Now()))
	select {
	case u := <-ch:
		t.Errorf("expected no update after stop, got %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcasterListenerLifecycle(t *testing.T) {
	b := NewBroadcaster(4)

	_, cancel1 := b.Listen(context.Background())
	_, cancel2 := b.Listen(context.Background())
	if b.ListenerCount() != 2 {
		t.Fatalf("expected 2 listeners, got %d", b.ListenerCount())
	}

	cancel1()
	cancel2()
	deadline := time.Now().Add(time.Second)
	for b.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected listeners to be removed, still %d", b.ListenerCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcasterDropsWhenListenerIsFull(t *testing.T) {
	b := NewBroadcaster(1)

	ch, cancel := b.Listen(context.Background())
	defer cancel()

	// second send must not block even though nobody is reading
	b.Send(update("c1", 1, time.Now()))
	b.Send(update("c1", 2, time.Now()))

	got := <-ch
	if got.TotalSpins != 1 {
		t.Errorf("expected the buffered first update, got %d", got.TotalSpins)
	}
	select {
	case u := <-ch:
		t.Errorf("expected the overflow update to be dropped, got %+v", u)
	default:
	}
}

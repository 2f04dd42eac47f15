package feed

import (
	"context"
	"sync"
)

// Broadcaster fans updates out to every active listener. Slow
// listeners drop updates rather than block the sender; a missed budget
// snapshot is superseded by the next one anyway.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan Update
	nextID    int
	buffer    int
}

// NewBroadcaster creates a broadcaster with per-listener buffers
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		listeners: make(map[int]chan Update),
		buffer:    buffer,
	}
}

// Send publishes an update to all listeners, dropping on full buffers
func (b *Broadcaster) Send(update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- update:
		default:
		}
	}
}

// Listen registers a listener; the cancel function removes it
func (b *Broadcaster) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Update, b.buffer)
	b.listeners[id] = ch
	b.mu.Unlock()

	listenerCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-listenerCtx.Done()
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}()

	return ch, cancel
}

// ListenerCount returns the number of active listeners
func (b *Broadcaster) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

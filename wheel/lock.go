package wheel

import (
	"context"
	"sync"
)

// Locker serializes spin attempts per user key. The local implementation
// below only guards within one process; multi-instance deployments plug
// in a distributed lease behind the same interface.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

type lockEntry struct {
	mu      sync.Mutex
	waiters int
}

// LocalLocker is a process-local keyed mutex map. Entries are removed
// once no caller holds or waits for them, so the map does not grow with
// the lifetime of the process.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocalLocker builds an empty keyed locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*lockEntry)}
}

// WithLock runs fn while holding the key's mutex. Concurrent calls for
// the same key serialize in arrival order; the lock is always released,
// including when fn panics.
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.waiters++
	l.mu.Unlock()

	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// Active returns the number of keys currently held or waited on
func (l *LocalLocker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

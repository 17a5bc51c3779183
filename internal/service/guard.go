package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// runGuard — prevents overlapping batch runs
// ─────────────────────────────────────────────────────────────

// runGuard ensures only one batch runs at a time. A trigger that
// fires mid-run is skipped, not queued.
type runGuard struct {
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// TryLock attempts to mark the batch as running. Returns false if
// a run is already in progress.
func (g *runGuard) TryLock() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	g.wg.Add(1)
	return true
}

// Unlock marks the batch as finished. Must be called after TryLock
// returns true.
func (g *runGuard) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.wg.Done()
}

// WaitAll blocks until the in-progress run completes or ctx is cancelled.
func (g *runGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pinger is implemented by the rule repositories and audit storages.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// SyncTracker remembers the outcome of the latest rules sync so readiness
// can report a failing source. It satisfies CheckFunc through Check.
type SyncTracker struct {
	mu       sync.RWMutex
	origin   string
	lastErr  error
	lastSync time.Time
	synced   bool
}

// NewSyncTracker creates a tracker. Before the first sync it reports
// unhealthy.
func NewSyncTracker() *SyncTracker {
	return &SyncTracker{}
}

// Observe records a sync of origin that ended with err.
func (t *SyncTracker) Observe(origin string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.origin = origin
	t.lastErr = err
	t.lastSync = time.Now()
	if err == nil {
		t.synced = true
	}
}

// LastSync returns when the last sync finished and whether it failed.
func (t *SyncTracker) LastSync() (time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSync, t.lastErr
}

// Check fails until a sync has succeeded, and whenever the latest sync failed.
func (t *SyncTracker) Check(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.lastErr != nil {
		return fmt.Errorf("last sync from %s failed: %w", t.origin, t.lastErr)
	}
	if !t.synced {
		return fmt.Errorf("rules not synced yet")
	}
	return nil
}

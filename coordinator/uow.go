package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nvsync/cachesync/types"
)

type uowKey struct{}

// UnitOfWork is the transaction-scoped eviction buffer. Events collected
// while the unit is open are dispatched exactly once on Commit and discarded
// on Rollback, so no stale-cache window is ever created for work that never
// took effect. A unit is owned by one logical transaction and is never shared
// across concurrent units.
type UnitOfWork struct {
	c *Coordinator

	mu     sync.Mutex
	events []types.EvictionEvent
	done   bool
}

// Begin opens a unit of work and threads it through the returned context.
// Collect calls seeing that context buffer their events until Commit.
func (c *Coordinator) Begin(ctx context.Context) (context.Context, *UnitOfWork) {
	u := &UnitOfWork{
		c:      c,
		events: make([]types.EvictionEvent, 0, 32),
	}
	return context.WithValue(ctx, uowKey{}, u), u
}

func unitFromContext(ctx context.Context) *UnitOfWork {
	u, _ := ctx.Value(uowKey{}).(*UnitOfWork)
	return u
}

// collect buffers one event. A unit that was already consumed falls back to
// immediate dispatch so late callers are not silently ignored.
func (u *UnitOfWork) collect(event types.EvictionEvent) {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		u.c.dispatch([]types.EvictionEvent{event})
		return
	}
	u.events = append(u.events, event)
	u.mu.Unlock()
}

// Commit hands the buffered events to the eviction strategy, in collection
// order, exactly once.
func (u *UnitOfWork) Commit() {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return
	}
	u.done = true
	events := u.events
	u.events = nil
	u.mu.Unlock()

	u.c.dispatch(events)
}

// Rollback discards the buffered events without dispatching any of them.
func (u *UnitOfWork) Rollback() {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return
	}
	u.done = true
	discarded := len(u.events)
	u.events = nil
	u.mu.Unlock()

	if discarded > 0 {
		atomic.AddInt64(&u.c.stats.rolledBack, int64(discarded))
	}
}

// Pending returns the number of buffered events.
func (u *UnitOfWork) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.events)
}

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nvsync/cachesync/cache"
	"github.com/nvsync/cachesync/policy"
	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

// fakeTransport records broadcasts and can be switched to fail.
type fakeTransport struct {
	mu     sync.Mutex
	events []types.EvictionEvent
	fail   bool
}

func (f *fakeTransport) Broadcast(ctx context.Context, event types.EvictionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context) error { return nil }

func (f *fakeTransport) OnEvent(handler transport.Handler) {}

func (f *fakeTransport) IsAvailable() bool { return true }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

// evictions returns recorded broadcasts with heartbeats filtered out.
func (f *fakeTransport) evictions() []types.EvictionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.EvictionEvent
	for _, e := range f.events {
		if !e.IsHeartbeat() {
			out = append(out, e)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func userRegistry() *policy.Registry {
	r := policy.NewRegistry()
	r.Register("User", types.CachePolicy{Cached: true, Region: "users"})
	return r
}

func testCoordinator(t *testing.T, mutate func(*Options)) (*Coordinator, *cache.LRUBackend, *fakeTransport) {
	t.Helper()

	backend := cache.NewLRUBackend(64)
	tr := &fakeTransport{}

	opts := DefaultOptions()
	opts.NodeID = "node-a"
	opts.Mode = types.ModeDistributed
	opts.Backend = backend
	opts.Transport = tr
	opts.Registry = userRegistry()
	opts.BatchEnabled = false
	if mutate != nil {
		mutate(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, backend, tr
}

func TestCommittedWriteEvictsAndBroadcasts(t *testing.T) {
	c, backend, tr := testCoordinator(t, nil)

	backend.Put("users", "42", "alice")

	ctx, uow := c.Begin(context.Background())
	if err := c.RecordWrite(ctx, "User", "42", types.OpUpdate); err != nil {
		t.Fatalf("RecordWrite failed: %v", err)
	}

	if uow.Pending() != 1 {
		t.Fatalf("Expected 1 buffered event, got %d", uow.Pending())
	}
	if !c.Contains("User", "42") {
		t.Fatal("Nothing should be evicted before commit")
	}

	uow.Commit()

	if c.Contains("User", "42") {
		t.Fatal("Commit should evict the key locally")
	}

	waitFor(t, "outbound broadcast", func() bool { return len(tr.evictions()) == 1 })

	got := tr.evictions()[0]
	if got.EntityType != "User" || got.EntityID != "42" || got.Region != "users" || got.Operation != types.OpUpdate {
		t.Fatalf("Unexpected broadcast event: %+v", got)
	}
	if got.OriginNodeID != "node-a" {
		t.Fatalf("Broadcast should carry the origin node, got %q", got.OriginNodeID)
	}
}

func TestAbortedWriteDispatchesNothing(t *testing.T) {
	c, backend, tr := testCoordinator(t, nil)

	backend.Put("users", "1", "alice")
	backend.Put("users", "2", "bob")

	ctx, uow := c.Begin(context.Background())
	c.RecordWrite(ctx, "User", "1", types.OpUpdate)
	c.RecordWrite(ctx, "User", "2", types.OpDelete)
	c.RecordWrite(ctx, "User", "3", types.OpInsert)

	uow.Rollback()

	time.Sleep(50 * time.Millisecond)
	if len(tr.evictions()) != 0 {
		t.Fatal("Aborted unit of work must not broadcast")
	}
	if !c.Contains("User", "1") || !c.Contains("User", "2") {
		t.Fatal("Aborted unit of work must not evict")
	}
	if c.Stats().RolledBack != 3 {
		t.Fatalf("Expected 3 rolled-back events, got %d", c.Stats().RolledBack)
	}

	// Consumed units fall back to immediate dispatch.
	c.RecordWrite(ctx, "User", "1", types.OpUpdate)
	if c.Contains("User", "1") {
		t.Fatal("Collect after rollback should dispatch immediately")
	}
}

func TestCollectOutsideUnitDispatchesImmediately(t *testing.T) {
	c, backend, tr := testCoordinator(t, nil)

	backend.Put("users", "42", "alice")

	if err := c.RecordWrite(context.Background(), "User", "42", types.OpUpdate); err != nil {
		t.Fatalf("RecordWrite failed: %v", err)
	}

	if c.Contains("User", "42") {
		t.Fatal("Non-transactional write should evict immediately")
	}
	waitFor(t, "outbound broadcast", func() bool { return len(tr.evictions()) == 1 })
}

func TestSelfEchoIsFiltered(t *testing.T) {
	c, backend, _ := testCoordinator(t, nil)

	backend.Put("users", "42", "alice")

	echo := types.NewEvictionEvent("User", "42", "users", types.OpUpdate).WithOrigin("node-a")
	c.handleRemoteEvent(echo)

	if !c.Contains("User", "42") {
		t.Fatal("Self-originated event must not be re-applied")
	}
	if c.Stats().SelfFiltered != 1 {
		t.Fatalf("Expected 1 self-filtered event, got %d", c.Stats().SelfFiltered)
	}
}

func TestRemoteEventsApplyOnce(t *testing.T) {
	c, backend, _ := testCoordinator(t, nil)

	backend.Put("users", "42", "alice")

	event := types.NewEvictionEvent("User", "42", "users", types.OpUpdate).WithOrigin("node-b")
	c.handleRemoteEvent(event)

	if c.Contains("User", "42") {
		t.Fatal("Remote event should evict locally")
	}

	c.handleRemoteEvent(event)

	stats := c.Stats()
	if stats.RemoteApplied != 1 {
		t.Fatalf("Expected 1 remote apply, got %d", stats.RemoteApplied)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("Expected 1 duplicate, got %d", stats.Duplicates)
	}
}

func TestRemoteHeartbeatFeedsMonitor(t *testing.T) {
	c, _, _ := testCoordinator(t, nil)

	c.handleRemoteEvent(types.NewHeartbeatEvent("node-b"))

	status := c.ClusterStatus()
	if len(status.Nodes) != 1 || status.Nodes[0].NodeID != "node-b" {
		t.Fatalf("Expected peer node-b, got %+v", status.Nodes)
	}
	if status.Health != types.HealthHealthy {
		t.Fatalf("Expected HEALTHY, got %s", status.Health)
	}
}

func TestDisabledModeDropsEvents(t *testing.T) {
	c, backend, tr := testCoordinator(t, func(o *Options) { o.Mode = types.ModeDisabled })

	backend.Put("users", "42", "alice")

	if err := c.RecordWrite(context.Background(), "User", "42", types.OpUpdate); err != nil {
		t.Fatalf("RecordWrite failed: %v", err)
	}

	if !c.Contains("User", "42") {
		t.Fatal("Disabled mode must not evict")
	}
	if c.Stats().Dropped != 1 {
		t.Fatalf("Expected 1 dropped event, got %d", c.Stats().Dropped)
	}
	if len(tr.evictions()) != 0 {
		t.Fatal("Disabled mode must not broadcast")
	}
}

func TestLocalModeDoesNotBroadcast(t *testing.T) {
	c, backend, tr := testCoordinator(t, func(o *Options) { o.Mode = types.ModeLocal })

	backend.Put("users", "42", "alice")
	c.RecordWrite(context.Background(), "User", "42", types.OpUpdate)

	if c.Contains("User", "42") {
		t.Fatal("Local mode should evict locally")
	}
	time.Sleep(50 * time.Millisecond)
	if len(tr.evictions()) != 0 {
		t.Fatal("Local mode must not broadcast")
	}
}

func TestAutoModeResolution(t *testing.T) {
	c, _, _ := testCoordinator(t, func(o *Options) { o.Mode = types.ModeAuto })
	if c.Mode() != types.ModeDistributed {
		t.Fatalf("AUTO with an available transport should resolve to DISTRIBUTED, got %s", c.Mode())
	}

	local, err := New(func() Options {
		o := DefaultOptions()
		o.NodeID = "node-solo"
		o.Backend = cache.NewLRUBackend(8)
		return o
	}())
	if err != nil {
		t.Fatalf("Failed to create standalone coordinator: %v", err)
	}
	defer local.Close()
	if local.Mode() != types.ModeLocal {
		t.Fatalf("AUTO without a transport should resolve to LOCAL, got %s", local.Mode())
	}
	if local.ClusterStatus().Health != types.HealthStandalone {
		t.Fatal("Standalone node should report STANDALONE health")
	}
}

func TestFailedBroadcastEntersRetryQueue(t *testing.T) {
	c, backend, tr := testCoordinator(t, nil)
	tr.setFail(true)

	backend.Put("users", "42", "alice")
	c.RecordWrite(context.Background(), "User", "42", types.OpUpdate)

	if c.Contains("User", "42") {
		t.Fatal("Local eviction must succeed even when the transport is down")
	}

	waitFor(t, "retry enqueue", func() bool { return c.Stats().Retry.QueueSize >= 1 })
	if c.Stats().BroadcastFailures < 1 {
		t.Fatal("Broadcast failure should be counted")
	}
}

func TestPolicySuppressesEviction(t *testing.T) {
	c, backend, _ := testCoordinator(t, func(o *Options) {
		r := userRegistry()
		r.Register("Audit", types.CachePolicy{Cached: false})
		r.Register("Order", types.CachePolicy{Cached: true, Region: "orders", EvictOnFields: []string{"status"}})
		o.Registry = r
	})

	backend.Put("orders", "7", "order-7")

	c.RecordWrite(context.Background(), "Audit", "1", types.OpUpdate, "anything")
	c.RecordWrite(context.Background(), "Order", "7", types.OpUpdate, "note")
	if !c.Contains("Order", "7") {
		t.Fatal("Unwatched field change must not evict")
	}

	c.RecordWrite(context.Background(), "Order", "7", types.OpUpdate, "status")
	if c.Contains("Order", "7") {
		t.Fatal("Watched field change should evict")
	}
}

func TestQueryRegionEvictedAlongside(t *testing.T) {
	c, backend, _ := testCoordinator(t, func(o *Options) {
		r := policy.NewRegistry()
		r.Register("User", types.CachePolicy{Cached: true, Region: "users", EvictQueryCache: true})
		o.Registry = r
	})

	backend.Put("users", "42", "alice")
	backend.Put("users.queries", "recent-users", []string{"41", "42"})

	c.RecordWrite(context.Background(), "User", "42", types.OpUpdate)

	if backend.Exists("users", "42") {
		t.Fatal("Entity region should be evicted")
	}
	if backend.Exists("users.queries", "recent-users") {
		t.Fatal("Query region should be evicted alongside")
	}
}

func TestRecordStatement(t *testing.T) {
	c, backend, _ := testCoordinator(t, func(o *Options) {
		r := policy.NewRegistry()
		r.Register("users", types.CachePolicy{Cached: true})
		o.Registry = r
	})

	backend.Put("users", "1", "alice")
	backend.Put("users", "2", "bob")

	if err := c.RecordStatement(context.Background(), "UPDATE users SET name = ? WHERE id = ?"); err != nil {
		t.Fatalf("RecordStatement failed: %v", err)
	}
	if backend.Exists("users", "1") || backend.Exists("users", "2") {
		t.Fatal("Statement-derived eviction should clear the whole region")
	}

	if err := c.RecordStatement(context.Background(), "SELECT 1"); !errors.Is(err, ErrUnknownStatement) {
		t.Fatalf("Expected ErrUnknownStatement, got %v", err)
	}
}

func TestBatchedBroadcastsMerge(t *testing.T) {
	c, backend, tr := testCoordinator(t, func(o *Options) {
		o.BatchEnabled = true
		o.BatchThreshold = 100
		o.BatchMaxDelay = time.Hour
	})

	backend.Put("users", "1", "alice")
	backend.Put("users", "2", "bob")
	backend.Put("users", "3", "carol")

	for _, id := range []string{"1", "2", "3"} {
		c.RecordWrite(context.Background(), "User", id, types.OpUpdate)
	}

	if c.Contains("User", "1") || c.Contains("User", "2") || c.Contains("User", "3") {
		t.Fatal("Local evictions should not wait for the batch window")
	}
	time.Sleep(50 * time.Millisecond)
	if len(tr.evictions()) != 0 {
		t.Fatal("Broadcasts should be held by the open batch window")
	}

	// Disabling batch mode flushes the window.
	c.SetBatchMode(false)

	waitFor(t, "merged broadcast", func() bool { return len(tr.evictions()) == 1 })
	merged := tr.evictions()[0]
	if !merged.IsWholeType() || merged.EntityType != "User" || merged.Region != "users" {
		t.Fatalf("Expected one whole-type merged event, got %+v", merged)
	}
}

func TestClosedCoordinatorRejectsWrites(t *testing.T) {
	c, _, _ := testCoordinator(t, nil)
	c.Close()

	err := c.Collect(context.Background(), types.NewEvictionEvent("User", "1", "users", types.OpUpdate))
	if !errors.Is(err, ErrCoordinatorClosed) {
		t.Fatalf("Expected ErrCoordinatorClosed, got %v", err)
	}
}

func TestValidateFailsFast(t *testing.T) {
	opts := DefaultOptions()
	if _, err := New(opts); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Missing node id should fail fast, got %v", err)
	}

	opts.NodeID = "node-a"
	opts.Mode = "SOMETIMES"
	if _, err := New(opts); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Unknown mode should fail fast, got %v", err)
	}

	opts = DefaultOptions()
	opts.NodeID = "node-a"
	opts.BatchThreshold = 0
	if _, err := New(opts); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Zero batch threshold should fail fast, got %v", err)
	}
}

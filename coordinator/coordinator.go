// Package coordinator keeps a read-through object/query cache consistent
// across cooperating processes. It buffers evictions per unit of work,
// applies them locally on commit, and broadcasts them to peers through a
// pluggable transport with batching, retry, and dead-lettering.
package coordinator

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nvsync/cachesync/batch"
	"github.com/nvsync/cachesync/cache"
	"github.com/nvsync/cachesync/cluster"
	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/policy"
	"github.com/nvsync/cachesync/retry"
	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

// Coordinator owns the invalidation pipeline for one process: the local
// cache manager, the broadcast transport, the batch optimizer, the retry
// handler, and the cluster monitor. One instance serves all units of work in
// the process.
type Coordinator struct {
	options  Options
	mode     types.Mode
	nodeID   string
	manager  *cache.Manager
	tr       transport.Transport
	optimize *batch.Optimizer
	retries  *retry.Handler
	monitor  *cluster.Monitor
	registry *policy.Registry
	logger   logging.Logger
	stats    *statsRecorder

	// seen de-duplicates received event ids so replayed broadcasts are
	// applied at most once.
	seen *lru.Cache[string, struct{}]

	batchOn    int32
	closed     int32
	broadcasts errgroup.Group
}

// New creates and starts a coordinator. Configuration errors fail here,
// before any write traffic is accepted.
func New(opts Options) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Registry == nil {
		opts.Registry = policy.NewRegistry()
	}
	if opts.Transport == nil {
		opts.Transport = transport.NewLocalTransport()
	}

	backend := opts.Backend
	if backend == nil {
		factory := opts.BackendFactory
		if factory == nil {
			factory = cache.NewRistrettoBackendFactory(cache.DefaultBackendConfig())
		}
		var err error
		backend, err = factory.Create()
		if err != nil {
			return nil, err
		}
	}

	mode := opts.Mode
	if mode == types.ModeAuto {
		if opts.Transport.IsAvailable() {
			mode = types.ModeDistributed
		} else {
			mode = types.ModeLocal
		}
	}

	seen, err := lru.New[string, struct{}](opts.DedupeCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		options:  opts,
		mode:     mode,
		nodeID:   opts.NodeID,
		tr:       opts.Transport,
		registry: opts.Registry,
		logger:   opts.Logger,
		stats:    newStatsRecorder(opts.RecentActivitySize),
		seen:     seen,
	}
	c.manager = cache.NewManager(backend, opts.Registry.RegionFor, opts.Logger)
	c.broadcasts.SetLimit(opts.MaxConcurrentBroadcasts)

	if opts.BatchEnabled {
		c.batchOn = 1
	}

	c.optimize = batch.NewOptimizer(opts.BatchThreshold, opts.BatchMaxDelay, c.sendBatch, opts.Logger)
	c.retries = retry.NewHandler(retry.Config{
		MaxAttempts:      opts.RetryMaxAttempts,
		BaseDelay:        opts.RetryBaseDelay,
		PollInterval:     opts.RetryPollInterval,
		QueueSize:        opts.RetryQueueSize,
		DeadLetterSize:   opts.DeadLetterQueueSize,
		BroadcastTimeout: opts.BroadcastTimeout,
	}, c.tr.Broadcast, opts.Logger)
	c.monitor = cluster.NewMonitor(opts.NodeID, c.tr, cluster.Config{
		HeartbeatInterval: opts.HeartbeatInterval,
		SilenceWindow:     opts.SilenceWindow,
		PruneGrace:        opts.PruneGrace,
		BroadcastTimeout:  opts.BroadcastTimeout,
	}, opts.Logger)

	if c.distributed() {
		c.tr.OnEvent(c.handleRemoteEvent)
		ctx, cancel := context.WithTimeout(context.Background(), opts.BroadcastTimeout)
		defer cancel()
		if err := c.tr.Subscribe(ctx); err != nil {
			return nil, err
		}
		c.optimize.Start()
		c.retries.Start()
		c.monitor.Start()
	}

	c.logger.Info("coordinator started", "node_id", c.nodeID, "mode", string(c.mode))
	return c, nil
}

// Mode returns the resolved eviction strategy mode.
func (c *Coordinator) Mode() types.Mode {
	return c.mode
}

// Manager returns the local cache manager.
func (c *Coordinator) Manager() *cache.Manager {
	return c.manager
}

// Contains reports whether the entity's region currently holds the given key.
func (c *Coordinator) Contains(entityType, id string) bool {
	return c.manager.Contains(entityType, id)
}

func (c *Coordinator) distributed() bool {
	return c.mode == types.ModeDistributed || c.mode == types.ModeHybrid
}

func (c *Coordinator) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

func (c *Coordinator) onError(err error) {
	if c.options.OnError != nil {
		c.options.OnError(err)
	}
}

// Collect records one eviction event. Inside a unit of work the event is
// buffered until Commit; outside one it is dispatched immediately, so manual
// and non-transactional callers are not silently ignored.
func (c *Coordinator) Collect(ctx context.Context, event types.EvictionEvent) error {
	if c.isClosed() {
		return ErrCoordinatorClosed
	}

	if event.OriginNodeID == "" {
		event = event.WithOrigin(c.nodeID)
	}

	if u := unitFromContext(ctx); u != nil {
		u.collect(event)
		return nil
	}

	c.dispatch([]types.EvictionEvent{event})
	return nil
}

// RecordWrite derives eviction events for a completed write against a typed
// API and collects them. The per-type policy decides whether the changed
// fields warrant eviction at all and whether the query-result region is
// evicted alongside the entity region.
func (c *Coordinator) RecordWrite(ctx context.Context, entityType, entityID string, op types.Operation, changedFields ...string) error {
	if c.isClosed() {
		return ErrCoordinatorClosed
	}

	if !c.registry.ShouldEvict(entityType, changedFields) {
		if c.options.DebugMode {
			c.logger.Debug("write does not evict under policy", "entity_type", entityType, "fields", changedFields)
		}
		return nil
	}

	region := c.registry.RegionFor(entityType)
	if err := c.Collect(ctx, types.NewEvictionEvent(entityType, entityID, region, op)); err != nil {
		return err
	}

	if queryRegion := c.registry.QueryRegionFor(entityType); queryRegion != "" {
		return c.Collect(ctx, types.NewEvictionEvent(entityType, "", queryRegion, op))
	}
	return nil
}

// RecordStatement derives an eviction from a raw SQL write statement, for
// write sites where the entity type is not known from a typed API. The whole
// entity region is evicted because the touched keys cannot be derived from
// the statement text.
func (c *Coordinator) RecordStatement(ctx context.Context, stmt string) error {
	table, op, ok := policy.StatementTarget(stmt)
	if !ok {
		return ErrUnknownStatement
	}
	return c.RecordWrite(ctx, table, "", op)
}

// dispatch runs the eviction strategy for a committed set of events: apply
// locally first, then hand off for broadcast depending on the mode. It never
// waits on network I/O.
func (c *Coordinator) dispatch(events []types.EvictionEvent) {
	c.dispatchFrom(events, "local")
}

func (c *Coordinator) dispatchFrom(events []types.EvictionEvent, source string) {
	if len(events) == 0 {
		return
	}

	switch c.mode {
	case types.ModeDisabled:
		atomic.AddInt64(&c.stats.dropped, int64(len(events)))
		return
	case types.ModeLocal:
		c.applyLocal(events, source)
		return
	default:
		// Local application comes first: local reads must never see stale
		// data even while remote peers are still catching up.
		c.applyLocal(events, source)
		for _, event := range events {
			if event.IsHeartbeat() {
				continue
			}
			if atomic.LoadInt32(&c.batchOn) != 0 {
				c.optimize.Add(event)
			} else {
				c.enqueueBroadcast(event)
			}
		}
	}
}

func (c *Coordinator) applyLocal(events []types.EvictionEvent, source string) {
	for _, event := range events {
		if event.IsHeartbeat() {
			continue
		}
		c.manager.Apply(event)
		atomic.AddInt64(&c.stats.localEvictions, 1)
		c.stats.recordEviction(event, source)
		if c.options.DebugMode {
			c.logger.Debug("applied local eviction",
				"entity_type", event.EntityType, "entity_id", event.EntityID, "region", event.Region)
		}
	}
}

// sendBatch is the optimizer's flush target. Runs on the optimizer's caller,
// which may be the write path, so each event is handed off asynchronously.
func (c *Coordinator) sendBatch(events []types.EvictionEvent) {
	for _, event := range events {
		c.enqueueBroadcast(event)
	}
}

// enqueueBroadcast starts an asynchronous broadcast, bounded by the
// configured concurrency limit. When the limit is reached the event goes
// straight to the retry pipeline rather than blocking the caller.
func (c *Coordinator) enqueueBroadcast(event types.EvictionEvent) {
	started := c.broadcasts.TryGo(func() error {
		c.sendNow(event)
		return nil
	})
	if !started {
		// No broadcast was attempted yet, so the record keeps its full
		// attempt budget.
		if err := c.retries.EnqueueFresh(event); err != nil {
			c.onError(err)
		}
	}
}

func (c *Coordinator) sendNow(event types.EvictionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), c.options.BroadcastTimeout)
	err := c.tr.Broadcast(ctx, event)
	cancel()

	if err == nil {
		atomic.AddInt64(&c.stats.broadcasts, 1)
		return
	}

	atomic.AddInt64(&c.stats.broadcastFailures, 1)
	c.logger.Warn("broadcast failed, queueing for retry", "event_id", event.EventID, "error", err)
	c.onError(err)
	if qerr := c.retries.Enqueue(event); qerr != nil {
		c.onError(qerr)
	}
}

// handleRemoteEvent applies an event received from the transport. Echoes of
// this node's own broadcasts and already-seen event ids are discarded, so
// receipt is idempotent.
func (c *Coordinator) handleRemoteEvent(event types.EvictionEvent) {
	if c.isClosed() {
		return
	}

	if event.OriginNodeID == c.nodeID {
		atomic.AddInt64(&c.stats.selfFiltered, 1)
		return
	}

	if event.IsHeartbeat() {
		c.monitor.Observe(event)
		return
	}

	if _, dup := c.seen.Get(event.EventID); dup {
		atomic.AddInt64(&c.stats.duplicates, 1)
		return
	}
	c.seen.Add(event.EventID, struct{}{})

	c.manager.Apply(event)
	atomic.AddInt64(&c.stats.remoteApplied, 1)
	c.stats.recordEviction(event, "remote")
	if c.options.DebugMode {
		c.logger.Debug("applied remote eviction",
			"entity_type", event.EntityType, "entity_id", event.EntityID,
			"region", event.Region, "origin", event.OriginNodeID)
	}
}

// StartBatch opens an explicit batch scope for bulk writes. Events collected
// while the scope is open are queued and merged; closing the scope flushes.
func (c *Coordinator) StartBatch() *batch.Scope {
	return c.optimize.StartBatch()
}

// Close shuts the coordinator down: the optimizer flushes its final batch,
// in-flight broadcasts drain, and the transport closes. Pending retry-queue
// records are not drained.
func (c *Coordinator) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.optimize.Close()
	c.retries.Close()
	c.monitor.Close()

	_ = c.broadcasts.Wait()

	return c.tr.Close()
}

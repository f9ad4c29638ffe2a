// Package cluster tracks peer liveness through heartbeats exchanged over the
// same transport the eviction events travel on.
package cluster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

// Config configures the cluster monitor.
type Config struct {
	// HeartbeatInterval is how often this node announces itself.
	HeartbeatInterval time.Duration

	// SilenceWindow is how long a peer may stay silent before it is marked
	// inactive.
	SilenceWindow time.Duration

	// PruneGrace is how long an inactive peer is retained before it is
	// removed from the table entirely.
	PruneGrace time.Duration

	// BroadcastTimeout bounds each heartbeat broadcast.
	BroadcastTimeout time.Duration
}

// DefaultConfig returns default monitor configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		SilenceWindow:     15 * time.Second,
		PruneGrace:        30 * time.Second,
		BroadcastTimeout:  5 * time.Second,
	}
}

// Monitor emits heartbeats, records peer heartbeats, and derives the
// aggregate cluster health. The health value is computed on demand from the
// peer table; it is never stored.
type Monitor struct {
	nodeID string
	cfg    Config
	tr     transport.Transport
	logger logging.Logger

	nodes *xsync.MapOf[string, types.NodeStatus]

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewMonitor creates a cluster monitor for the given node.
func NewMonitor(nodeID string, tr transport.Transport, cfg Config, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Monitor{
		nodeID: nodeID,
		cfg:    cfg,
		tr:     tr,
		logger: logger,
		nodes:  xsync.NewMapOf[string, types.NodeStatus](),
		done:   make(chan struct{}),
	}
}

// Start launches the heartbeat sender and the inactive-node sweeper.
func (m *Monitor) Start() {
	m.wg.Add(2)

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		m.beat()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.beat()
			}
		}
	}()

	go func() {
		defer m.wg.Done()
		interval := m.cfg.SilenceWindow / 2
		if interval < time.Second {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

// Close stops the background workers.
func (m *Monitor) Close() {
	m.once.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Monitor) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BroadcastTimeout)
	defer cancel()
	if err := m.tr.Broadcast(ctx, types.NewHeartbeatEvent(m.nodeID)); err != nil {
		m.logger.Debug("heartbeat broadcast failed", "error", err)
	}
}

// Observe records a heartbeat received from the transport. Non-heartbeat
// events and the node's own echoes are ignored.
func (m *Monitor) Observe(event types.EvictionEvent) {
	if !event.IsHeartbeat() || event.OriginNodeID == "" || event.OriginNodeID == m.nodeID {
		return
	}
	m.nodes.Store(event.OriginNodeID, types.NodeStatus{
		NodeID:          event.OriginNodeID,
		LastHeartbeatAt: time.Now(),
		Active:          true,
	})
}

// sweep demotes peers silent past the window and prunes them after the grace
// period.
func (m *Monitor) sweep(now time.Time) {
	m.nodes.Range(func(id string, status types.NodeStatus) bool {
		silence := now.Sub(status.LastHeartbeatAt)
		switch {
		case silence >= m.cfg.SilenceWindow+m.cfg.PruneGrace:
			m.nodes.Delete(id)
			m.logger.Info("pruned silent node", "node_id", id)
		case silence >= m.cfg.SilenceWindow && status.Active:
			status.Active = false
			m.nodes.Store(id, status)
			m.logger.Warn("node marked inactive", "node_id", id, "silent_for", silence)
		}
		return true
	})
}

// Nodes returns a snapshot of the peer table, sorted by node id.
func (m *Monitor) Nodes() []types.NodeStatus {
	out := make([]types.NodeStatus, 0, m.nodes.Size())
	m.nodes.Range(func(_ string, status types.NodeStatus) bool {
		out = append(out, status)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Health derives the aggregate cluster health from the peer table.
func (m *Monitor) Health() types.ClusterHealth {
	total := 0
	inactive := 0
	m.nodes.Range(func(_ string, status types.NodeStatus) bool {
		total++
		if !status.Active {
			inactive++
		}
		return true
	})

	switch {
	case total == 0:
		return types.HealthStandalone
	case inactive == 0:
		return types.HealthHealthy
	case inactive*2 > total:
		return types.HealthCritical
	default:
		return types.HealthDegraded
	}
}

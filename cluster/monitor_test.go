package cluster

import (
	"testing"
	"time"

	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

func testMonitor() *Monitor {
	cfg := DefaultConfig()
	cfg.SilenceWindow = 10 * time.Second
	cfg.PruneGrace = 20 * time.Second
	return NewMonitor("self", transport.NewLocalTransport(), cfg, nil)
}

func TestObserveTracksPeers(t *testing.T) {
	m := testMonitor()

	m.Observe(types.NewHeartbeatEvent("peer-1"))
	m.Observe(types.NewHeartbeatEvent("peer-2"))

	nodes := m.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 peers, got %d", len(nodes))
	}
	for _, n := range nodes {
		if !n.Active {
			t.Fatalf("Fresh peer %s should be active", n.NodeID)
		}
	}
}

func TestObserveIgnoresSelfAndNonHeartbeats(t *testing.T) {
	m := testMonitor()

	m.Observe(types.NewHeartbeatEvent("self"))
	m.Observe(types.NewEvictionEvent("User", "1", "users", types.OpUpdate).WithOrigin("peer-1"))

	if len(m.Nodes()) != 0 {
		t.Fatal("Self heartbeats and evictions should not create peers")
	}
}

func TestHealthTransitions(t *testing.T) {
	m := testMonitor()

	if m.Health() != types.HealthStandalone {
		t.Fatalf("No peers should mean STANDALONE, got %s", m.Health())
	}

	now := time.Now()
	for _, id := range []string{"peer-1", "peer-2", "peer-3"} {
		m.nodes.Store(id, types.NodeStatus{NodeID: id, LastHeartbeatAt: now, Active: true})
	}
	if m.Health() != types.HealthHealthy {
		t.Fatalf("All peers active should mean HEALTHY, got %s", m.Health())
	}

	// One peer silent past the window but inside the grace period: demoted,
	// not pruned, so a minority is inactive.
	m.nodes.Store("peer-1", types.NodeStatus{NodeID: "peer-1", LastHeartbeatAt: now.Add(-15 * time.Second), Active: true})
	m.sweep(now)
	if len(m.Nodes()) != 3 {
		t.Fatalf("Demoted peer should be retained, got %d peers", len(m.Nodes()))
	}
	if m.Health() != types.HealthDegraded {
		t.Fatalf("One of three silent should mean DEGRADED, got %s", m.Health())
	}

	// Two silent peers: a majority is inactive.
	m.nodes.Store("peer-2", types.NodeStatus{NodeID: "peer-2", LastHeartbeatAt: now.Add(-15 * time.Second), Active: true})
	m.sweep(now)
	if m.Health() != types.HealthCritical {
		t.Fatalf("Two of three silent should mean CRITICAL, got %s", m.Health())
	}
}

func TestSweepDemotesThenPrunes(t *testing.T) {
	m := testMonitor()
	now := time.Now()

	m.nodes.Store("peer-1", types.NodeStatus{NodeID: "peer-1", LastHeartbeatAt: now, Active: true})

	// Inside the silence window: untouched.
	m.sweep(now.Add(5 * time.Second))
	if nodes := m.Nodes(); len(nodes) != 1 || !nodes[0].Active {
		t.Fatal("Peer inside the window should stay active")
	}

	// Past the window: demoted but retained.
	m.sweep(now.Add(15 * time.Second))
	if nodes := m.Nodes(); len(nodes) != 1 || nodes[0].Active {
		t.Fatal("Silent peer should be marked inactive")
	}

	// Past the grace period: pruned.
	m.sweep(now.Add(time.Minute))
	if len(m.Nodes()) != 0 {
		t.Fatal("Silent peer should be pruned after the grace period")
	}
}

func TestHeartbeatRevivesInactivePeer(t *testing.T) {
	m := testMonitor()
	now := time.Now()

	m.nodes.Store("peer-1", types.NodeStatus{NodeID: "peer-1", LastHeartbeatAt: now.Add(-15 * time.Second), Active: true})
	m.sweep(now)
	if nodes := m.Nodes(); nodes[0].Active {
		t.Fatal("Peer should be inactive")
	}

	m.Observe(types.NewHeartbeatEvent("peer-1"))
	if nodes := m.Nodes(); !nodes[0].Active {
		t.Fatal("Fresh heartbeat should reactivate the peer")
	}
	if m.Health() != types.HealthHealthy {
		t.Fatalf("Revived cluster should be HEALTHY, got %s", m.Health())
	}
}

package coordinator

import (
	"sync/atomic"

	"github.com/nvsync/cachesync/types"
)

// ClusterStatus is the cluster view exposed to health-check consumers.
type ClusterStatus struct {
	NodeID string
	Mode   types.Mode
	Health types.ClusterHealth
	Nodes  []types.NodeStatus
}

// Stats returns a snapshot of coordinator statistics.
func (c *Coordinator) Stats() Stats {
	s := c.stats.snapshot()
	s.Mode = c.mode
	s.Retry = c.retries.Stats()
	return s
}

// EvictEntity manually evicts one instance key, locally and, in distributed
// mode, on every peer.
func (c *Coordinator) EvictEntity(entityType, id string) error {
	return c.adminDispatch(types.NewEvictionEvent(entityType, id, c.registry.RegionFor(entityType), types.OpDelete))
}

// EvictEntityCache manually evicts an entire entity-type region.
func (c *Coordinator) EvictEntityCache(entityType string) error {
	return c.adminDispatch(types.NewEvictionEvent(entityType, "", c.registry.RegionFor(entityType), types.OpDelete))
}

// EvictRegion manually evicts a named region, typically a query-result
// region.
func (c *Coordinator) EvictRegion(name string) error {
	return c.adminDispatch(types.NewEvictionEvent("", "", name, types.OpDelete))
}

// EvictAll wipes every managed region on this node and its peers. The
// explicit confirmation flag guards against accidental full wipes.
func (c *Coordinator) EvictAll(confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	c.logger.Warn("full cache eviction requested", "node_id", c.nodeID)
	return c.adminDispatch(types.NewEvictionEvent("", "", types.EvictAllRegion, types.OpDelete))
}

func (c *Coordinator) adminDispatch(event types.EvictionEvent) error {
	if c.isClosed() {
		return ErrCoordinatorClosed
	}
	event = event.WithOrigin(c.nodeID)
	c.dispatchFrom([]types.EvictionEvent{event}, "admin")
	return nil
}

// ReprocessDeadLetters resubmits every dead-lettered event to the retry
// pipeline with a fresh attempt budget. Returns the number resubmitted.
func (c *Coordinator) ReprocessDeadLetters() int {
	return c.retries.Reprocess()
}

// SetBatchMode toggles the batch optimizer for outbound broadcasts.
// Disabling flushes anything still queued.
func (c *Coordinator) SetBatchMode(enable bool) {
	if enable {
		atomic.StoreInt32(&c.batchOn, 1)
		return
	}
	atomic.StoreInt32(&c.batchOn, 0)
	c.optimize.Flush()
}

// BatchMode reports whether the batch optimizer is active.
func (c *Coordinator) BatchMode() bool {
	return atomic.LoadInt32(&c.batchOn) != 0
}

// ClusterStatus returns the active-node table and the derived health.
func (c *Coordinator) ClusterStatus() ClusterStatus {
	return ClusterStatus{
		NodeID: c.nodeID,
		Mode:   c.mode,
		Health: c.monitor.Health(),
		Nodes:  c.monitor.Nodes(),
	}
}

package types

import (
	"time"

	"github.com/google/uuid"
)

// Operation identifies the kind of write that produced an eviction event.
type Operation string

// Operation constants carried on the wire.
const (
	OpInsert    Operation = "INSERT"
	OpUpdate    Operation = "UPDATE"
	OpDelete    Operation = "DELETE"
	OpHeartbeat Operation = "HEARTBEAT"
)

// Mode selects how eviction events are propagated.
type Mode string

// Mode constants for the eviction strategy.
const (
	ModeAuto        Mode = "AUTO"
	ModeLocal       Mode = "LOCAL"
	ModeDistributed Mode = "DISTRIBUTED"
	ModeHybrid      Mode = "HYBRID"
	ModeDisabled    Mode = "DISABLED"
)

// EvictAllRegion is the sentinel region name meaning "every managed region".
// Only the guarded administrative wipe produces events with this region.
const EvictAllRegion = "*"

// EvictionEvent describes one cache invalidation. It is a value type and is
// never mutated after construction; derive variants with WithOrigin and
// AsWholeType, which return copies.
type EvictionEvent struct {
	EventID      string    `json:"event_id" msgpack:"event_id"`
	EntityType   string    `json:"entity_type" msgpack:"entity_type"`
	EntityID     string    `json:"entity_id,omitempty" msgpack:"entity_id,omitempty"`
	Region       string    `json:"region" msgpack:"region"`
	Operation    Operation `json:"operation" msgpack:"operation"`
	Timestamp    time.Time `json:"timestamp" msgpack:"timestamp"`
	OriginNodeID string    `json:"origin_node_id,omitempty" msgpack:"origin_node_id,omitempty"`
}

// NewEvictionEvent creates an eviction event with a fresh id and the current
// timestamp. An empty entityID means the whole entity region is evicted.
func NewEvictionEvent(entityType, entityID, region string, op Operation) EvictionEvent {
	return EvictionEvent{
		EventID:    uuid.NewString(),
		EntityType: entityType,
		EntityID:   entityID,
		Region:     region,
		Operation:  op,
		Timestamp:  time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event for the given node.
func NewHeartbeatEvent(nodeID string) EvictionEvent {
	return EvictionEvent{
		EventID:      uuid.NewString(),
		Operation:    OpHeartbeat,
		Timestamp:    time.Now(),
		OriginNodeID: nodeID,
	}
}

// WithOrigin returns a copy of the event stamped with the producing node's id.
func (e EvictionEvent) WithOrigin(nodeID string) EvictionEvent {
	e.OriginNodeID = nodeID
	return e
}

// AsWholeType returns a copy of the event widened to evict the entire entity
// region instead of a single instance key.
func (e EvictionEvent) AsWholeType() EvictionEvent {
	e.EntityID = ""
	return e
}

// IsWholeType reports whether the event evicts an entire region rather than a
// single instance key.
func (e EvictionEvent) IsWholeType() bool {
	return e.EntityID == ""
}

// IsHeartbeat reports whether the event is a cluster heartbeat rather than a
// cache eviction.
func (e EvictionEvent) IsHeartbeat() bool {
	return e.Operation == OpHeartbeat
}

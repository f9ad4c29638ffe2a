package cachesync

import (
	"github.com/nvsync/cachesync/cache"
	"github.com/nvsync/cachesync/coordinator"
	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/policy"
	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

// Coordinator is an alias for coordinator.Coordinator.
type Coordinator = coordinator.Coordinator

// UnitOfWork is an alias for coordinator.UnitOfWork.
type UnitOfWork = coordinator.UnitOfWork

// Stats is an alias for coordinator.Stats.
type Stats = coordinator.Stats

// ClusterStatus is an alias for coordinator.ClusterStatus.
type ClusterStatus = coordinator.ClusterStatus

// EvictionEvent is an alias for types.EvictionEvent.
type EvictionEvent = types.EvictionEvent

// Operation is an alias for types.Operation.
type Operation = types.Operation

// Mode is an alias for types.Mode.
type Mode = types.Mode

// CachePolicy is an alias for types.CachePolicy.
type CachePolicy = types.CachePolicy

// NodeStatus is an alias for types.NodeStatus.
type NodeStatus = types.NodeStatus

// ClusterHealth is an alias for types.ClusterHealth.
type ClusterHealth = types.ClusterHealth

// Backend is an alias for cache.Backend.
type Backend = cache.Backend

// BackendFactory is an alias for cache.BackendFactory.
type BackendFactory = cache.BackendFactory

// Transport is an alias for transport.Transport.
type Transport = transport.Transport

// Registry is an alias for policy.Registry.
type Registry = policy.Registry

// Logger is an alias for logging.Logger.
type Logger = logging.Logger

// Operation constants carried on eviction events.
const (
	OpInsert = types.OpInsert
	OpUpdate = types.OpUpdate
	OpDelete = types.OpDelete
)

// Strategy mode constants.
const (
	ModeAuto        = types.ModeAuto
	ModeLocal       = types.ModeLocal
	ModeDistributed = types.ModeDistributed
	ModeHybrid      = types.ModeHybrid
	ModeDisabled    = types.ModeDisabled
)

// Cluster health constants.
const (
	HealthStandalone = types.HealthStandalone
	HealthHealthy    = types.HealthHealthy
	HealthDegraded   = types.HealthDegraded
	HealthCritical   = types.HealthCritical
)

// NewRegistry creates an empty cache-policy registry.
func NewRegistry() *Registry {
	return policy.NewRegistry()
}

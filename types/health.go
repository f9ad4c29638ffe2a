package types

import "time"

// NodeStatus tracks the liveness of one cluster peer.
type NodeStatus struct {
	NodeID          string    `json:"node_id"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	Active          bool      `json:"active"`
}

// ClusterHealth is the aggregate health derived from known peer statuses.
// It is computed on demand and never persisted.
type ClusterHealth string

const (
	// HealthStandalone means no peers are known.
	HealthStandalone ClusterHealth = "STANDALONE"

	// HealthHealthy means every known peer is active.
	HealthHealthy ClusterHealth = "HEALTHY"

	// HealthDegraded means a minority of known peers is inactive.
	HealthDegraded ClusterHealth = "DEGRADED"

	// HealthCritical means a majority of known peers is inactive.
	HealthCritical ClusterHealth = "CRITICAL"
)

package cache

import (
	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/types"
)

// RegionResolver maps a logical entity type to its cache region name.
type RegionResolver func(entityType string) string

// Manager applies eviction events to the cache backend. Backend failures are
// logged and swallowed: a missed local eviction degrades to eventual
// staleness, never to an outage on the write path.
type Manager struct {
	backend  Backend
	resolver RegionResolver
	logger   logging.Logger
}

// NewManager creates a cache manager over the given backend. A nil resolver
// names regions after the entity type; a nil logger discards output.
func NewManager(backend Backend, resolver RegionResolver, logger logging.Logger) *Manager {
	if resolver == nil {
		resolver = func(entityType string) string { return entityType }
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{
		backend:  backend,
		resolver: resolver,
		logger:   logger,
	}
}

// Backend returns the underlying storage backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Apply applies one eviction event to the backend using the per-operation
// rules shared by local dispatch and remote receipt. Applying the same event
// twice is harmless.
func (m *Manager) Apply(event types.EvictionEvent) {
	if event.IsHeartbeat() {
		return
	}

	if event.Region == types.EvictAllRegion {
		m.EvictAll()
		return
	}

	region := event.Region
	if region == "" {
		region = m.resolver(event.EntityType)
	}

	if event.IsWholeType() {
		if err := m.backend.EvictRegion(region); err != nil {
			m.logger.Warn("region eviction failed", "region", region, "error", err)
		}
		return
	}

	if err := m.backend.Evict(region, event.EntityID); err != nil {
		m.logger.Warn("entity eviction failed", "region", region, "key", event.EntityID, "error", err)
	}
}

// EvictEntity removes one instance key from the entity's region.
func (m *Manager) EvictEntity(entityType, id string) {
	region := m.resolver(entityType)
	if err := m.backend.Evict(region, id); err != nil {
		m.logger.Warn("entity eviction failed", "region", region, "key", id, "error", err)
	}
}

// EvictEntityCache removes an entire entity-type region.
func (m *Manager) EvictEntityCache(entityType string) {
	region := m.resolver(entityType)
	if err := m.backend.EvictRegion(region); err != nil {
		m.logger.Warn("region eviction failed", "region", region, "error", err)
	}
}

// EvictRegion removes a named region outright.
func (m *Manager) EvictRegion(name string) {
	if err := m.backend.EvictRegion(name); err != nil {
		m.logger.Warn("region eviction failed", "region", name, "error", err)
	}
}

// EvictAll removes every managed region. Reserved for explicit administrative
// action because of its blast radius.
func (m *Manager) EvictAll() {
	if err := m.backend.EvictAll(); err != nil {
		m.logger.Warn("full eviction failed", "error", err)
	}
}

// Contains reports whether the entity's region currently holds the given key.
// Used for diagnostics and tests.
func (m *Manager) Contains(entityType, id string) bool {
	return m.backend.Exists(m.resolver(entityType), id)
}

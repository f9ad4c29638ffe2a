// Package policy holds the registry of resolved per-type cache policies and
// the helpers write sites use to decide whether a change evicts.
package policy

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nvsync/cachesync/types"
)

// Registry maps logical entity type names to resolved cache policies. It is
// populated once at startup by an explicit registration step; the coordinator
// only reads it.
type Registry struct {
	policies *xsync.MapOf[string, types.CachePolicy]
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{policies: xsync.NewMapOf[string, types.CachePolicy]()}
}

// Register stores the resolved policy for an entity type.
func (r *Registry) Register(entityType string, p types.CachePolicy) {
	r.policies.Store(entityType, p)
}

// Lookup returns the policy for an entity type.
func (r *Registry) Lookup(entityType string) (types.CachePolicy, bool) {
	return r.policies.Load(entityType)
}

// RegionFor returns the cache region for an entity type. Unregistered types
// and policies without an explicit region use the type name itself.
func (r *Registry) RegionFor(entityType string) string {
	if p, found := r.policies.Load(entityType); found && p.Region != "" {
		return p.Region
	}
	return entityType
}

// QueryRegionFor returns the query-result region evicted alongside the
// entity region, or "" when the policy does not request query eviction.
func (r *Registry) QueryRegionFor(entityType string) string {
	p, found := r.policies.Load(entityType)
	if !found || !p.EvictQueryCache {
		return ""
	}
	if p.QueryRegion != "" {
		return p.QueryRegion
	}
	return r.RegionFor(entityType) + ".queries"
}

// ShouldEvict decides whether a write touching the given fields warrants an
// eviction event. Field sensitivity is resolved here, at the call site; the
// batch and transport pipeline stays field-agnostic. An empty changedFields
// list means the caller could not determine the fields and eviction proceeds.
func (r *Registry) ShouldEvict(entityType string, changedFields []string) bool {
	p, found := r.policies.Load(entityType)
	if !found {
		// Unregistered types default to cached with an evict-on-any policy.
		return true
	}
	if !p.Cached {
		return false
	}
	if len(changedFields) == 0 {
		return true
	}

	ignored := make(map[string]struct{}, len(p.IgnoredFields))
	for _, f := range p.IgnoredFields {
		ignored[f] = struct{}{}
	}

	if len(p.EvictOnFields) == 0 {
		for _, f := range changedFields {
			if _, skip := ignored[f]; !skip {
				return true
			}
		}
		return false
	}

	watched := make(map[string]struct{}, len(p.EvictOnFields))
	for _, f := range p.EvictOnFields {
		watched[f] = struct{}{}
	}
	for _, f := range changedFields {
		if _, skip := ignored[f]; skip {
			continue
		}
		if _, hit := watched[f]; hit {
			return true
		}
	}
	return false
}

package types

// CachePolicy is the resolved caching policy for one logical entity type.
// Discovery (annotation scanning, config parsing) happens elsewhere; the
// coordinator only consumes the resolved structure.
type CachePolicy struct {
	// Cached reports whether the type participates in second-level caching
	// at all. A write to an uncached type never emits an eviction event.
	Cached bool

	// Region is the cache region holding instances of the type. Empty means
	// the region is named after the entity type itself.
	Region string

	// EvictOnFields lists the fields whose change triggers eviction.
	// Empty means any field change evicts.
	EvictOnFields []string

	// IgnoredFields lists fields whose change never triggers eviction,
	// regardless of EvictOnFields.
	IgnoredFields []string

	// EvictQueryCache requests that the type's query-result region be
	// evicted alongside the entity region.
	EvictQueryCache bool

	// QueryRegion is the query-result region to evict when EvictQueryCache
	// is set. Empty means "<region>.queries".
	QueryRegion string
}

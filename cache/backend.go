package cache

// Backend is the storage engine the coordinator evicts against. Entries live
// in named regions (one per entity type, plus query-result regions). The
// coordinator makes no assumption about the backend's eviction policy or
// storage format; implementations must be safe for concurrent use.
type Backend interface {
	// Put stores a value in a region. Returns false if the entry was
	// rejected (for example by an admission policy).
	Put(region, key string, value any) bool

	// Get retrieves a value from a region.
	Get(region, key string) (any, bool)

	// Evict removes one entry from a region.
	Evict(region, key string) error

	// EvictRegion removes an entire region.
	EvictRegion(region string) error

	// EvictAll removes every managed region.
	EvictAll() error

	// Exists reports whether a region holds the given key.
	Exists(region, key string) bool

	// Close releases backend resources.
	Close()
}

// BackendFactory creates backend instances.
type BackendFactory interface {
	// Create creates a new backend instance.
	Create() (Backend, error)
}

// BackendConfig configures the reference backends.
type BackendConfig struct {
	// NumCounters is the number of admission counters (Ristretto only).
	// Recommended: 10 * expected max entries.
	NumCounters int64

	// MaxCost is the maximum total cost of entries (Ristretto only).
	MaxCost int64

	// BufferItems is the size of the Set buffer (Ristretto only).
	// Recommended: 64.
	BufferItems int64

	// IgnoreInternalCost ignores the internal cost of entries (Ristretto only).
	IgnoreInternalCost bool

	// MaxEntriesPerRegion is the per-region capacity (LRU only).
	MaxEntriesPerRegion int
}

// DefaultBackendConfig returns default backend configuration.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		NumCounters:         1e6,
		MaxCost:             1 << 28, // 256MB
		BufferItems:         64,
		MaxEntriesPerRegion: 10000,
	}
}

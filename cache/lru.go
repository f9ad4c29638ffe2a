package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUBackendFactory creates LRU-backed backends.
type LRUBackendFactory struct {
	maxEntriesPerRegion int
}

// NewLRUBackendFactory creates a new LRU backend factory.
func NewLRUBackendFactory(maxEntriesPerRegion int) BackendFactory {
	return &LRUBackendFactory{maxEntriesPerRegion: maxEntriesPerRegion}
}

// Create creates a new LRU backend instance.
func (f *LRUBackendFactory) Create() (Backend, error) {
	return NewLRUBackend(f.maxEntriesPerRegion), nil
}

// LRUBackend keeps one bounded LRU cache per region.
type LRUBackend struct {
	mu        sync.RWMutex
	regions   map[string]*lru.Cache[string, any]
	maxPerReg int
}

// NewLRUBackend creates a new LRU-backed cache backend.
func NewLRUBackend(maxEntriesPerRegion int) *LRUBackend {
	if maxEntriesPerRegion <= 0 {
		maxEntriesPerRegion = DefaultBackendConfig().MaxEntriesPerRegion
	}
	return &LRUBackend{
		regions:   make(map[string]*lru.Cache[string, any]),
		maxPerReg: maxEntriesPerRegion,
	}
}

func (b *LRUBackend) region(name string) *lru.Cache[string, any] {
	b.mu.RLock()
	c, found := b.regions[name]
	b.mu.RUnlock()
	if found {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, found = b.regions[name]; found {
		return c
	}
	// lru.New only fails on a non-positive size, which is guarded above.
	c, _ = lru.New[string, any](b.maxPerReg)
	b.regions[name] = c
	return c
}

// Put stores a value in a region.
func (b *LRUBackend) Put(region, key string, value any) bool {
	b.region(region).Add(key, value)
	return true
}

// Get retrieves a value from a region.
func (b *LRUBackend) Get(region, key string) (any, bool) {
	return b.region(region).Get(key)
}

// Evict removes one entry from a region.
func (b *LRUBackend) Evict(region, key string) error {
	b.mu.RLock()
	c, found := b.regions[region]
	b.mu.RUnlock()
	if found {
		c.Remove(key)
	}
	return nil
}

// EvictRegion removes an entire region.
func (b *LRUBackend) EvictRegion(region string) error {
	b.mu.Lock()
	c, found := b.regions[region]
	delete(b.regions, region)
	b.mu.Unlock()
	if found {
		c.Purge()
	}
	return nil
}

// EvictAll removes every managed region.
func (b *LRUBackend) EvictAll() error {
	b.mu.Lock()
	regions := b.regions
	b.regions = make(map[string]*lru.Cache[string, any])
	b.mu.Unlock()
	for _, c := range regions {
		c.Purge()
	}
	return nil
}

// Exists reports whether a region holds the given key.
func (b *LRUBackend) Exists(region, key string) bool {
	b.mu.RLock()
	c, found := b.regions[region]
	b.mu.RUnlock()
	if !found {
		return false
	}
	return c.Contains(key)
}

// Close closes the backend.
func (b *LRUBackend) Close() {
	b.EvictAll()
}

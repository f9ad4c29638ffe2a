package cache

import (
	"sync"

	"github.com/dgraph-io/ristretto"
)

// RistrettoBackendFactory creates Ristretto-backed backends.
type RistrettoBackendFactory struct {
	config BackendConfig
}

// NewRistrettoBackendFactory creates a new Ristretto backend factory.
func NewRistrettoBackendFactory(config BackendConfig) BackendFactory {
	return &RistrettoBackendFactory{config: config}
}

// Create creates a new Ristretto backend instance.
func (f *RistrettoBackendFactory) Create() (Backend, error) {
	return NewRistrettoBackend(f.config)
}

// RistrettoBackend stores all regions in a single Ristretto cache using
// composite keys. Region eviction needs enumeration, which Ristretto does not
// provide, so a per-region key index is maintained alongside the cache.
type RistrettoBackend struct {
	cache *ristretto.Cache

	mu      sync.Mutex
	regions map[string]map[string]struct{}
}

// NewRistrettoBackend creates a new Ristretto-backed cache backend.
func NewRistrettoBackend(config BackendConfig) (*RistrettoBackend, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        config.NumCounters,
		MaxCost:            config.MaxCost,
		BufferItems:        config.BufferItems,
		IgnoreInternalCost: config.IgnoreInternalCost,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoBackend{
		cache:   c,
		regions: make(map[string]map[string]struct{}),
	}, nil
}

func compositeKey(region, key string) string {
	return region + "\x1f" + key
}

// Put stores a value in a region. Waits for the write buffer to drain so a
// subsequent Exists sees the entry.
func (b *RistrettoBackend) Put(region, key string, value any) bool {
	ok := b.cache.Set(compositeKey(region, key), value, 1)
	if ok {
		b.cache.Wait()
		b.mu.Lock()
		keys, found := b.regions[region]
		if !found {
			keys = make(map[string]struct{})
			b.regions[region] = keys
		}
		keys[key] = struct{}{}
		b.mu.Unlock()
	}
	return ok
}

// Get retrieves a value from a region.
func (b *RistrettoBackend) Get(region, key string) (any, bool) {
	return b.cache.Get(compositeKey(region, key))
}

// Evict removes one entry from a region.
func (b *RistrettoBackend) Evict(region, key string) error {
	b.cache.Del(compositeKey(region, key))
	b.mu.Lock()
	if keys, found := b.regions[region]; found {
		delete(keys, key)
	}
	b.mu.Unlock()
	return nil
}

// EvictRegion removes an entire region.
func (b *RistrettoBackend) EvictRegion(region string) error {
	b.mu.Lock()
	keys := b.regions[region]
	delete(b.regions, region)
	b.mu.Unlock()

	for key := range keys {
		b.cache.Del(compositeKey(region, key))
	}
	return nil
}

// EvictAll removes every managed region.
func (b *RistrettoBackend) EvictAll() error {
	b.mu.Lock()
	b.regions = make(map[string]map[string]struct{})
	b.mu.Unlock()
	b.cache.Clear()
	return nil
}

// Exists reports whether a region holds the given key.
func (b *RistrettoBackend) Exists(region, key string) bool {
	_, found := b.cache.Get(compositeKey(region, key))
	return found
}

// Close closes the backend.
func (b *RistrettoBackend) Close() {
	b.cache.Close()
}

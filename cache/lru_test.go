package cache

import "testing"

func TestLRUBackendPutGet(t *testing.T) {
	b := NewLRUBackend(16)
	defer b.Close()

	if ok := b.Put("users", "1", "alice"); !ok {
		t.Fatal("Put should succeed")
	}

	value, found := b.Get("users", "1")
	if !found {
		t.Fatal("Value should be found")
	}
	if value != "alice" {
		t.Fatalf("Expected alice, got %v", value)
	}

	if !b.Exists("users", "1") {
		t.Fatal("Exists should report the key")
	}
	if b.Exists("users", "2") {
		t.Fatal("Exists should not report a missing key")
	}
	if b.Exists("orders", "1") {
		t.Fatal("Regions should be isolated")
	}
}

func TestLRUBackendEvict(t *testing.T) {
	b := NewLRUBackend(16)
	defer b.Close()

	b.Put("users", "1", "alice")
	b.Put("users", "2", "bob")

	if err := b.Evict("users", "1"); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if b.Exists("users", "1") {
		t.Fatal("Evicted key should be gone")
	}
	if !b.Exists("users", "2") {
		t.Fatal("Other keys should survive")
	}

	// Evicting from an unknown region is a no-op.
	if err := b.Evict("missing", "1"); err != nil {
		t.Fatalf("Evict on unknown region failed: %v", err)
	}
}

func TestLRUBackendEvictRegion(t *testing.T) {
	b := NewLRUBackend(16)
	defer b.Close()

	b.Put("users", "1", "alice")
	b.Put("users", "2", "bob")
	b.Put("orders", "7", "order-7")

	if err := b.EvictRegion("users"); err != nil {
		t.Fatalf("EvictRegion failed: %v", err)
	}
	if b.Exists("users", "1") || b.Exists("users", "2") {
		t.Fatal("Region should be empty after eviction")
	}
	if !b.Exists("orders", "7") {
		t.Fatal("Other regions should survive")
	}
}

func TestLRUBackendEvictAll(t *testing.T) {
	b := NewLRUBackend(16)
	defer b.Close()

	b.Put("users", "1", "alice")
	b.Put("orders", "7", "order-7")

	if err := b.EvictAll(); err != nil {
		t.Fatalf("EvictAll failed: %v", err)
	}
	if b.Exists("users", "1") || b.Exists("orders", "7") {
		t.Fatal("All regions should be empty")
	}
}

func TestLRUBackendFactory(t *testing.T) {
	f := NewLRUBackendFactory(8)
	b, err := f.Create()
	if err != nil {
		t.Fatalf("Factory failed: %v", err)
	}
	defer b.Close()

	b.Put("users", "1", "alice")
	if !b.Exists("users", "1") {
		t.Fatal("Factory-created backend should store values")
	}
}

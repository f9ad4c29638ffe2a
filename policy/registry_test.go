package policy

import (
	"testing"

	"github.com/nvsync/cachesync/types"
)

func TestRegionFor(t *testing.T) {
	r := NewRegistry()
	r.Register("User", types.CachePolicy{Cached: true, Region: "users"})

	if got := r.RegionFor("User"); got != "users" {
		t.Fatalf("Expected users, got %q", got)
	}
	if got := r.RegionFor("Order"); got != "Order" {
		t.Fatalf("Unregistered type should use its own name, got %q", got)
	}
}

func TestQueryRegionFor(t *testing.T) {
	r := NewRegistry()
	r.Register("User", types.CachePolicy{Cached: true, Region: "users", EvictQueryCache: true})
	r.Register("Order", types.CachePolicy{Cached: true, Region: "orders", EvictQueryCache: true, QueryRegion: "order-queries"})
	r.Register("Audit", types.CachePolicy{Cached: true, Region: "audit"})

	if got := r.QueryRegionFor("User"); got != "users.queries" {
		t.Fatalf("Expected derived query region, got %q", got)
	}
	if got := r.QueryRegionFor("Order"); got != "order-queries" {
		t.Fatalf("Expected explicit query region, got %q", got)
	}
	if got := r.QueryRegionFor("Audit"); got != "" {
		t.Fatalf("Policy without query eviction should yield empty, got %q", got)
	}
}

func TestShouldEvict(t *testing.T) {
	r := NewRegistry()
	r.Register("User", types.CachePolicy{
		Cached:        true,
		Region:        "users",
		IgnoredFields: []string{"last_seen"},
	})
	r.Register("Order", types.CachePolicy{
		Cached:        true,
		Region:        "orders",
		EvictOnFields: []string{"status", "total"},
		IgnoredFields: []string{"updated_at"},
	})
	r.Register("Audit", types.CachePolicy{Cached: false})

	tests := []struct {
		name       string
		entityType string
		fields     []string
		want       bool
	}{
		{"unregistered type evicts", "Ghost", []string{"anything"}, true},
		{"uncached type never evicts", "Audit", []string{"anything"}, false},
		{"any-field policy evicts", "User", []string{"email"}, true},
		{"only ignored fields do not evict", "User", []string{"last_seen"}, false},
		{"unknown fields evict conservatively", "User", nil, true},
		{"watched field evicts", "Order", []string{"status"}, true},
		{"unwatched field does not evict", "Order", []string{"note"}, false},
		{"ignored field does not evict", "Order", []string{"updated_at"}, false},
		{"mixed fields evict when one is watched", "Order", []string{"note", "total"}, true},
	}

	for _, tt := range tests {
		if got := r.ShouldEvict(tt.entityType, tt.fields); got != tt.want {
			t.Fatalf("%s: ShouldEvict(%q, %v) = %v, want %v", tt.name, tt.entityType, tt.fields, got, tt.want)
		}
	}
}

package coordinator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nvsync/cachesync/retry"
	"github.com/nvsync/cachesync/types"
)

// Activity is one entry in the recent-eviction log.
type Activity struct {
	Time       time.Time
	EntityType string
	EntityID   string
	Region     string
	Operation  types.Operation
	Source     string // "local", "remote", or "admin"
}

// Stats is a snapshot of coordinator statistics.
type Stats struct {
	Mode types.Mode

	LocalEvictions    int64
	RemoteApplied     int64
	Broadcasts        int64
	BroadcastFailures int64
	Dropped           int64
	SelfFiltered      int64
	Duplicates        int64
	RolledBack        int64

	Retry retry.Stats

	PerType map[string]int64
	Recent  []Activity
}

type statsRecorder struct {
	localEvictions    int64
	remoteApplied     int64
	broadcasts        int64
	broadcastFailures int64
	dropped           int64
	selfFiltered      int64
	duplicates        int64
	rolledBack        int64

	perType *xsync.MapOf[string, *xsync.Counter]

	mu     sync.Mutex
	recent []Activity
	next   int
	size   int
}

func newStatsRecorder(recentSize int) *statsRecorder {
	if recentSize <= 0 {
		recentSize = 100
	}
	return &statsRecorder{
		perType: xsync.NewMapOf[string, *xsync.Counter](),
		recent:  make([]Activity, 0, recentSize),
		size:    recentSize,
	}
}

// recordEviction notes one applied eviction in the per-type breakdown and the
// recent-activity ring.
func (s *statsRecorder) recordEviction(event types.EvictionEvent, source string) {
	if event.EntityType != "" {
		counter, _ := s.perType.LoadOrCompute(event.EntityType, xsync.NewCounter)
		counter.Inc()
	}

	a := Activity{
		Time:       time.Now(),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Region:     event.Region,
		Operation:  event.Operation,
		Source:     source,
	}

	s.mu.Lock()
	if len(s.recent) < s.size {
		s.recent = append(s.recent, a)
	} else {
		s.recent[s.next] = a
		s.next = (s.next + 1) % s.size
	}
	s.mu.Unlock()
}

// snapshot copies the counters into an exported Stats value. Recent entries
// come back oldest first.
func (s *statsRecorder) snapshot() Stats {
	out := Stats{
		LocalEvictions:    atomic.LoadInt64(&s.localEvictions),
		RemoteApplied:     atomic.LoadInt64(&s.remoteApplied),
		Broadcasts:        atomic.LoadInt64(&s.broadcasts),
		BroadcastFailures: atomic.LoadInt64(&s.broadcastFailures),
		Dropped:           atomic.LoadInt64(&s.dropped),
		SelfFiltered:      atomic.LoadInt64(&s.selfFiltered),
		Duplicates:        atomic.LoadInt64(&s.duplicates),
		RolledBack:        atomic.LoadInt64(&s.rolledBack),
		PerType:           make(map[string]int64),
	}

	s.perType.Range(func(entityType string, counter *xsync.Counter) bool {
		out.PerType[entityType] = counter.Value()
		return true
	})

	s.mu.Lock()
	if len(s.recent) < s.size {
		out.Recent = append(out.Recent, s.recent...)
	} else {
		out.Recent = append(out.Recent, s.recent[s.next:]...)
		out.Recent = append(out.Recent, s.recent[:s.next]...)
	}
	s.mu.Unlock()

	return out
}

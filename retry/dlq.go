package retry

import (
	"sync"
	"sync/atomic"
)

// DeadLetterStore is the bounded terminal holding area for events that
// exhausted all retry attempts. Entries wait here for manual inspection or
// reprocessing; nothing leaves automatically.
type DeadLetterStore struct {
	mu      sync.Mutex
	records []*Record
	max     int

	rejected int64
}

// NewDeadLetterStore creates a store holding at most max records.
func NewDeadLetterStore(max int) *DeadLetterStore {
	return &DeadLetterStore{max: max}
}

// Add stores a record. Past capacity the record is rejected and counted.
func (s *DeadLetterStore) Add(r *Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) >= s.max {
		atomic.AddInt64(&s.rejected, 1)
		return false
	}
	s.records = append(s.records, r)
	return true
}

// Drain removes and returns every stored record.
func (s *DeadLetterStore) Drain() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records
	s.records = nil
	return records
}

// Snapshot returns a copy of the stored records.
func (s *DeadLetterStore) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// Size returns the number of stored records.
func (s *DeadLetterStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Rejected returns how many records were refused because the store was full.
func (s *DeadLetterStore) Rejected() int64 {
	return atomic.LoadInt64(&s.rejected)
}

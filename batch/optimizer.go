// Package batch buffers bursts of eviction events and merges redundant
// entries so bulk writes never turn into one broadcast per row.
package batch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/types"
)

// FlushFunc receives each merged batch. It runs outside the optimizer's lock.
type FlushFunc func(events []types.EvictionEvent)

// Optimizer accumulates eviction events and flushes them merged. A flush
// happens when the queued count reaches the threshold, when the oldest queued
// event has waited maxDelay, or when a scope closes, whichever comes first.
// The buffer is shared by every unit of work on the node.
type Optimizer struct {
	threshold int
	maxDelay  time.Duration
	flush     FlushFunc
	logger    logging.Logger

	mu      sync.Mutex
	pending []types.EvictionEvent
	oldest  time.Time

	merged  int64
	flushes int64

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewOptimizer creates a batch optimizer. Events handed to flush are already
// merged.
func NewOptimizer(threshold int, maxDelay time.Duration, flush FlushFunc, logger logging.Logger) *Optimizer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Optimizer{
		threshold: threshold,
		maxDelay:  maxDelay,
		flush:     flush,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start launches the background deadline timer.
func (o *Optimizer) Start() {
	interval := o.maxDelay / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-o.done:
				return
			case <-ticker.C:
				o.flushDue(time.Now())
			}
		}
	}()
}

// Close stops the timer and flushes whatever is still queued.
func (o *Optimizer) Close() {
	o.once.Do(func() {
		close(o.done)
	})
	o.wg.Wait()
	o.Flush()
}

// Add queues one event, flushing if the threshold is reached or the deadline
// has passed.
func (o *Optimizer) Add(event types.EvictionEvent) {
	now := time.Now()

	o.mu.Lock()
	if len(o.pending) == 0 {
		o.oldest = now
	}
	o.pending = append(o.pending, event)
	var batch []types.EvictionEvent
	if len(o.pending) >= o.threshold || now.Sub(o.oldest) >= o.maxDelay {
		batch = o.take()
	}
	o.mu.Unlock()

	o.dispatch(batch)
}

// Flush forces out everything queued, regardless of threshold or deadline.
func (o *Optimizer) Flush() {
	o.mu.Lock()
	batch := o.take()
	o.mu.Unlock()

	o.dispatch(batch)
}

// Pending returns the number of queued, not-yet-merged events.
func (o *Optimizer) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// MergedCount returns how many events were eliminated by merging so far.
func (o *Optimizer) MergedCount() int64 {
	return atomic.LoadInt64(&o.merged)
}

// FlushCount returns how many non-empty flush cycles have run.
func (o *Optimizer) FlushCount() int64 {
	return atomic.LoadInt64(&o.flushes)
}

// flushDue flushes when the oldest queued event has waited past the deadline.
func (o *Optimizer) flushDue(now time.Time) {
	o.mu.Lock()
	var batch []types.EvictionEvent
	if len(o.pending) > 0 && now.Sub(o.oldest) >= o.maxDelay {
		batch = o.take()
	}
	o.mu.Unlock()

	o.dispatch(batch)
}

// take empties the buffer and resets the deadline. Caller holds the lock.
func (o *Optimizer) take() []types.EvictionEvent {
	batch := o.pending
	o.pending = nil
	o.oldest = time.Time{}
	return batch
}

func (o *Optimizer) dispatch(batch []types.EvictionEvent) {
	if len(batch) == 0 {
		return
	}
	merged := o.merge(batch)
	atomic.AddInt64(&o.flushes, 1)
	o.logger.Debug("flushing batch", "queued", len(batch), "merged", len(merged))
	o.flush(merged)
}

// merge collapses events sharing (entityType, region) into a single
// whole-type eviction. Once a region is touched twice in one batch, per-entity
// precision is abandoned in favor of one full-region invalidation.
func (o *Optimizer) merge(events []types.EvictionEvent) []types.EvictionEvent {
	if len(events) == 1 {
		return events
	}

	out := make([]types.EvictionEvent, 0, len(events))
	index := make(map[string]int, len(events))
	for _, event := range events {
		key := event.EntityType + "\x1f" + event.Region
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, event)
			continue
		}
		if !out[i].IsWholeType() {
			out[i] = out[i].AsWholeType()
		}
		atomic.AddInt64(&o.merged, 1)
	}
	return out
}

// Scope marks an explicit batch window. Events added through the scope are
// queued rather than broadcast, and closing the scope guarantees a final
// flush even if the threshold was never reached.
type Scope struct {
	o    *Optimizer
	once sync.Once
}

// StartBatch opens a batch scope.
func (o *Optimizer) StartBatch() *Scope {
	return &Scope{o: o}
}

// Add queues one event in the scope's optimizer.
func (s *Scope) Add(event types.EvictionEvent) {
	s.o.Add(event)
}

// Close flushes any events still pending. Safe to call more than once.
func (s *Scope) Close() {
	s.once.Do(func() {
		s.o.Flush()
	})
}

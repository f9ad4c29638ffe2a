// Package retry re-attempts failed broadcasts with exponential backoff and
// demotes exhausted events to a bounded dead-letter store.
package retry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/types"
)

// ErrQueueFull is returned when the retry queue is at capacity.
var ErrQueueFull = errors.New("retry queue full")

// BroadcastFunc re-attempts the broadcast of one event.
type BroadcastFunc func(ctx context.Context, event types.EvictionEvent) error

// Record is one event awaiting retry.
type Record struct {
	Event         types.EvictionEvent
	Attempts      int
	NextAttemptAt time.Time

	schedule backoff.BackOff
}

// Config configures a retry Handler.
type Config struct {
	// MaxAttempts is the number of failed broadcasts after which an event
	// is dead-lettered.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent delays grow
	// exponentially.
	BaseDelay time.Duration

	// PollInterval is how often the background poller scans for due records.
	PollInterval time.Duration

	// QueueSize bounds the retry queue. Enqueue past capacity is rejected.
	QueueSize int

	// DeadLetterSize bounds the dead-letter store.
	DeadLetterSize int

	// BroadcastTimeout bounds each re-attempted broadcast.
	BroadcastTimeout time.Duration
}

// DefaultConfig returns default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		PollInterval:     time.Second,
		QueueSize:        1000,
		DeadLetterSize:   1000,
		BroadcastTimeout: 5 * time.Second,
	}
}

// Handler owns the retry queue and the dead-letter store. A background
// poller re-attempts due records at a fixed interval; records that exhaust
// MaxAttempts move to the dead-letter store and are never auto-retried again.
type Handler struct {
	cfg       Config
	broadcast BroadcastFunc
	logger    logging.Logger

	mu    sync.Mutex
	queue []*Record

	dead *DeadLetterStore

	rejected  int64
	retried   int64
	recovered int64

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewHandler creates a retry handler. The broadcast function is invoked from
// the background poller, never from the write path.
func NewHandler(cfg Config, broadcast BroadcastFunc, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Handler{
		cfg:       cfg,
		broadcast: broadcast,
		logger:    logger,
		dead:      NewDeadLetterStore(cfg.DeadLetterSize),
		done:      make(chan struct{}),
	}
}

// Start launches the background poller.
func (h *Handler) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.sweep(time.Now())
			}
		}
	}()
}

// Close stops the poller. Queued records are not drained; an orderly
// shutdown should stop write traffic first.
func (h *Handler) Close() {
	h.once.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Enqueue records one failed broadcast for retry. The first failure has
// already happened, so the record starts at one attempt.
func (h *Handler) Enqueue(event types.EvictionEvent) error {
	return h.enqueueAfterFailures(event, 1)
}

// EnqueueFresh records an event whose broadcast was deferred rather than
// failed, so it carries the full attempt budget.
func (h *Handler) EnqueueFresh(event types.EvictionEvent) error {
	return h.enqueueAfterFailures(event, 0)
}

func (h *Handler) enqueueAfterFailures(event types.EvictionEvent, attempts int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.queue) >= h.cfg.QueueSize {
		atomic.AddInt64(&h.rejected, 1)
		h.logger.Warn("retry queue full, rejecting event", "event_id", event.EventID)
		return ErrQueueFull
	}

	for _, r := range h.queue {
		if r.Event.EventID == event.EventID {
			return nil
		}
	}

	r := &Record{
		Event:    event,
		Attempts: attempts,
		schedule: newSchedule(h.cfg.BaseDelay),
	}
	r.NextAttemptAt = time.Now().Add(r.schedule.NextBackOff())
	h.queue = append(h.queue, r)
	return nil
}

// newSchedule builds the per-record backoff. Randomization is disabled so the
// delay between attempts grows strictly.
func newSchedule(base time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Minute
	return bo
}

// sweep re-attempts every record that is due at the given instant.
func (h *Handler) sweep(now time.Time) {
	h.mu.Lock()
	var due []*Record
	remaining := h.queue[:0]
	for _, r := range h.queue {
		if !r.NextAttemptAt.After(now) {
			due = append(due, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	h.queue = remaining
	h.mu.Unlock()

	for _, r := range due {
		h.attempt(r, now)
	}
}

func (h *Handler) attempt(r *Record, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.BroadcastTimeout)
	err := h.broadcast(ctx, r.Event)
	cancel()

	atomic.AddInt64(&h.retried, 1)

	if err == nil {
		atomic.AddInt64(&h.recovered, 1)
		h.logger.Debug("retry succeeded", "event_id", r.Event.EventID, "attempts", r.Attempts)
		return
	}

	r.Attempts++
	if r.Attempts >= h.cfg.MaxAttempts {
		h.logger.Warn("retries exhausted, dead-lettering event",
			"event_id", r.Event.EventID, "attempts", r.Attempts, "error", err)
		h.dead.Add(r)
		return
	}

	r.NextAttemptAt = now.Add(r.schedule.NextBackOff())
	h.mu.Lock()
	if len(h.queue) >= h.cfg.QueueSize {
		atomic.AddInt64(&h.rejected, 1)
		h.mu.Unlock()
		h.logger.Warn("retry queue full, dropping re-queued event", "event_id", r.Event.EventID)
		return
	}
	h.queue = append(h.queue, r)
	h.mu.Unlock()
}

// Reprocess resubmits every dead-lettered event to the retry pipeline with a
// fresh attempt budget. Returns the number of events resubmitted.
func (h *Handler) Reprocess() int {
	records := h.dead.Drain()
	resubmitted := 0
	for _, r := range records {
		if err := h.enqueueAfterFailures(r.Event, 0); err != nil {
			// Queue full: the event goes back to the dead-letter store
			// rather than being lost.
			h.dead.Add(r)
			continue
		}
		resubmitted++
	}
	return resubmitted
}

// QueueSize returns the number of records awaiting retry.
func (h *Handler) QueueSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// DeadLetters returns a snapshot of the dead-letter store.
func (h *Handler) DeadLetters() []Record {
	return h.dead.Snapshot()
}

// Stats summarizes the retry pipeline.
type Stats struct {
	QueueSize           int
	DeadLetterSize      int
	Retried             int64
	Recovered           int64
	RejectedRetries     int64
	RejectedDeadLetters int64
}

// Stats returns a snapshot of the retry pipeline counters.
func (h *Handler) Stats() Stats {
	return Stats{
		QueueSize:           h.QueueSize(),
		DeadLetterSize:      h.dead.Size(),
		Retried:             atomic.LoadInt64(&h.retried),
		Recovered:           atomic.LoadInt64(&h.recovered),
		RejectedRetries:     atomic.LoadInt64(&h.rejected),
		RejectedDeadLetters: h.dead.Rejected(),
	}
}

package coordinator

import (
	"fmt"
	"time"

	"github.com/nvsync/cachesync/cache"
	"github.com/nvsync/cachesync/logging"
	"github.com/nvsync/cachesync/policy"
	"github.com/nvsync/cachesync/transport"
	"github.com/nvsync/cachesync/types"
)

// Options configures a Coordinator instance.
type Options struct {
	// NodeID uniquely identifies this process. Self-origin filtering relies
	// on it: two processes sharing an id is an operator error and is not
	// auto-detected.
	NodeID string

	// Mode selects the eviction strategy. AUTO resolves to DISTRIBUTED when
	// the transport reports available, LOCAL otherwise.
	Mode types.Mode

	// Backend is the cache storage engine. If nil, BackendFactory is used.
	Backend cache.Backend

	// BackendFactory creates the backend when Backend is nil.
	// If both are nil, a Ristretto backend with default sizing is used.
	BackendFactory cache.BackendFactory

	// Transport is the broadcast channel. If nil, the no-op local transport
	// is used and the node runs standalone.
	Transport transport.Transport

	// Registry holds the resolved per-type cache policies. If nil, an empty
	// registry is used and every type defaults to evict-on-any-change.
	Registry *policy.Registry

	// Logger is the logger for the coordinator and its components.
	// If nil, defaults to a no-op logger.
	Logger logging.Logger

	// DebugMode enables chatty write-path logging.
	DebugMode bool

	// OnError is called when an error occurs in background operations.
	OnError func(error)

	// BatchEnabled turns the batch optimizer on for outbound broadcasts.
	BatchEnabled bool

	// BatchThreshold is the queued-event count that forces a flush.
	BatchThreshold int

	// BatchMaxDelay is the longest an event may sit queued before a flush.
	BatchMaxDelay time.Duration

	// RetryMaxAttempts is the number of failed broadcasts after which an
	// event is dead-lettered.
	RetryMaxAttempts int

	// RetryBaseDelay is the delay before the first retry.
	RetryBaseDelay time.Duration

	// RetryPollInterval is how often the retry poller runs.
	RetryPollInterval time.Duration

	// RetryQueueSize bounds the retry queue.
	RetryQueueSize int

	// DeadLetterQueueSize bounds the dead-letter store.
	DeadLetterQueueSize int

	// HeartbeatInterval is how often this node announces itself.
	HeartbeatInterval time.Duration

	// SilenceWindow is how long a peer may stay silent before being marked
	// inactive.
	SilenceWindow time.Duration

	// PruneGrace is how long an inactive peer is retained before removal.
	PruneGrace time.Duration

	// BroadcastTimeout bounds every broadcast attempt.
	BroadcastTimeout time.Duration

	// MaxConcurrentBroadcasts bounds in-flight asynchronous broadcasts.
	// Overflow is routed to the retry pipeline instead of blocking writes.
	MaxConcurrentBroadcasts int

	// RecentActivitySize bounds the recent-activity log in statistics.
	RecentActivitySize int

	// DedupeCacheSize bounds the received-event id cache used for
	// idempotent receipt.
	DedupeCacheSize int
}

// DefaultOptions returns default coordinator options. NodeID must still be
// set by the caller.
func DefaultOptions() Options {
	return Options{
		Mode:                    types.ModeAuto,
		BatchEnabled:            true,
		BatchThreshold:          100,
		BatchMaxDelay:           100 * time.Millisecond,
		RetryMaxAttempts:        3,
		RetryBaseDelay:          time.Second,
		RetryPollInterval:       time.Second,
		RetryQueueSize:          1000,
		DeadLetterQueueSize:     1000,
		HeartbeatInterval:       5 * time.Second,
		SilenceWindow:           15 * time.Second,
		PruneGrace:              30 * time.Second,
		BroadcastTimeout:        5 * time.Second,
		MaxConcurrentBroadcasts: 16,
		RecentActivitySize:      100,
		DedupeCacheSize:         4096,
	}
}

// Validate validates the options. Configuration errors fail fast here,
// before any write traffic is accepted.
func (o *Options) Validate() error {
	if o.NodeID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidConfig)
	}
	switch o.Mode {
	case types.ModeAuto, types.ModeLocal, types.ModeDistributed, types.ModeHybrid, types.ModeDisabled:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, o.Mode)
	}
	if o.BatchThreshold <= 0 {
		return fmt.Errorf("%w: batch threshold must be positive", ErrInvalidConfig)
	}
	if o.BatchMaxDelay <= 0 {
		return fmt.Errorf("%w: batch max delay must be positive", ErrInvalidConfig)
	}
	if o.RetryMaxAttempts <= 0 {
		return fmt.Errorf("%w: retry max attempts must be positive", ErrInvalidConfig)
	}
	if o.RetryBaseDelay <= 0 || o.RetryPollInterval <= 0 {
		return fmt.Errorf("%w: retry delays must be positive", ErrInvalidConfig)
	}
	if o.RetryQueueSize <= 0 || o.DeadLetterQueueSize <= 0 {
		return fmt.Errorf("%w: retry and dead-letter queue sizes must be positive", ErrInvalidConfig)
	}
	if o.HeartbeatInterval <= 0 || o.SilenceWindow <= 0 || o.PruneGrace <= 0 {
		return fmt.Errorf("%w: cluster intervals must be positive", ErrInvalidConfig)
	}
	if o.BroadcastTimeout <= 0 {
		return fmt.Errorf("%w: broadcast timeout must be positive", ErrInvalidConfig)
	}
	if o.MaxConcurrentBroadcasts <= 0 {
		return fmt.Errorf("%w: max concurrent broadcasts must be positive", ErrInvalidConfig)
	}
	return nil
}

// Package cachesync coordinates second-level cache invalidation across
// cooperating processes: evictions are buffered per unit of work, applied
// locally on commit, and broadcast to peers with batching, retry, and
// dead-lettering.
package cachesync

import (
	"time"

	"github.com/nvsync/cachesync/coordinator"
	"github.com/nvsync/cachesync/types"
)

// Config configures a coordinator instance.
type Config struct {
	// NodeID uniquely identifies this process. Used to filter echoes of the
	// node's own broadcasts; must be unique per process.
	NodeID string

	// Mode is the eviction strategy (AUTO, LOCAL, DISTRIBUTED, HYBRID, or
	// DISABLED). AUTO picks DISTRIBUTED when a transport is available.
	Mode Mode

	// Backend is the cache storage engine. If nil, BackendFactory is used;
	// if both are nil, a Ristretto backend with default sizing is created.
	Backend Backend

	// BackendFactory creates the backend when Backend is nil.
	BackendFactory BackendFactory

	// Transport is the broadcast channel. If nil, the node runs standalone.
	Transport Transport

	// Registry holds resolved per-type cache policies.
	Registry *Registry

	// Logger is the logger for debug and background logging.
	// If nil, defaults to a no-op logger.
	Logger Logger

	// DebugMode enables chatty write-path logging.
	DebugMode bool

	// OnError is called when an error occurs in background operations.
	OnError func(error)

	// BatchEnabled turns the batch optimizer on for outbound broadcasts.
	BatchEnabled bool

	// BatchThreshold is the queued-event count that forces a flush.
	BatchThreshold int

	// BatchMaxDelay is the longest an event may wait before a flush.
	BatchMaxDelay time.Duration

	// RetryMaxAttempts is the failed-broadcast count before dead-lettering.
	RetryMaxAttempts int

	// RetryBaseDelay is the delay before the first retry attempt.
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
}

// New creates a new coordinator instance. This is the root-level
// initialization function that allows users to import from the root package.
func New(cfg Config) (*Coordinator, error) {
	opts := coordinator.DefaultOptions()
	opts.NodeID = cfg.NodeID
	if cfg.Mode != "" {
		opts.Mode = cfg.Mode
	}
	opts.Backend = cfg.Backend
	opts.BackendFactory = cfg.BackendFactory
	opts.Transport = cfg.Transport
	opts.Registry = cfg.Registry
	opts.Logger = cfg.Logger
	opts.DebugMode = cfg.DebugMode
	opts.OnError = cfg.OnError
	opts.BatchEnabled = cfg.BatchEnabled
	if cfg.BatchThreshold > 0 {
		opts.BatchThreshold = cfg.BatchThreshold
	}
	if cfg.BatchMaxDelay > 0 {
		opts.BatchMaxDelay = cfg.BatchMaxDelay
	}
	if cfg.RetryMaxAttempts > 0 {
		opts.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		opts.RetryBaseDelay = cfg.RetryBaseDelay
	}
	if cfg.RetryPollInterval > 0 {
		opts.RetryPollInterval = cfg.RetryPollInterval
	}
	if cfg.RetryQueueSize > 0 {
		opts.RetryQueueSize = cfg.RetryQueueSize
	}
	if cfg.DeadLetterQueueSize > 0 {
		opts.DeadLetterQueueSize = cfg.DeadLetterQueueSize
	}
	if cfg.HeartbeatInterval > 0 {
		opts.HeartbeatInterval = cfg.HeartbeatInterval
	}
	if cfg.SilenceWindow > 0 {
		opts.SilenceWindow = cfg.SilenceWindow
	}
	if cfg.PruneGrace > 0 {
		opts.PruneGrace = cfg.PruneGrace
	}
	if cfg.BroadcastTimeout > 0 {
		opts.BroadcastTimeout = cfg.BroadcastTimeout
	}

	return coordinator.New(opts)
}

// DefaultConfig returns a default configuration. NodeID must still be set.
func DefaultConfig() Config {
	opts := coordinator.DefaultOptions()
	return Config{
		Mode:                types.ModeAuto,
		BatchEnabled:        opts.BatchEnabled,
		BatchThreshold:      opts.BatchThreshold,
		BatchMaxDelay:       opts.BatchMaxDelay,
		RetryMaxAttempts:    opts.RetryMaxAttempts,
		RetryBaseDelay:      opts.RetryBaseDelay,
		RetryPollInterval:   opts.RetryPollInterval,
		RetryQueueSize:      opts.RetryQueueSize,
		DeadLetterQueueSize: opts.DeadLetterQueueSize,
		HeartbeatInterval:   opts.HeartbeatInterval,
		SilenceWindow:       opts.SilenceWindow,
		PruneGrace:          opts.PruneGrace,
		BroadcastTimeout:    opts.BroadcastTimeout,
	}
}

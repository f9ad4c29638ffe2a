// Package transport defines the pluggable broadcast channel used to
// propagate eviction events between processes, and ships a Redis pub/sub
// implementation plus local reference implementations.
package transport

import (
	"context"
	"errors"

	"github.com/nvsync/cachesync/types"
)

// ErrTransportUnavailable is returned when a broadcast is attempted while the
// transport cannot reach its channel.
var ErrTransportUnavailable = errors.New("broadcast transport unavailable")

// Handler consumes events delivered by a transport. Handlers must not block:
// they run on the transport's receive goroutine.
type Handler func(event types.EvictionEvent)

// Transport is the publish/subscribe channel for eviction events. Self-origin
// filtering is the subscriber's concern: a transport delivers every event it
// receives, including echoes of the local node's own broadcasts.
type Transport interface {
	// Broadcast publishes an event to all subscribed processes.
	Broadcast(ctx context.Context, event types.EvictionEvent) error

	// Subscribe starts delivering received events to registered handlers.
	Subscribe(ctx context.Context) error

	// OnEvent registers a handler for received events.
	OnEvent(handler Handler)

	// IsAvailable reports whether the transport can currently broadcast.
	IsAvailable() bool

	// Close stops the transport and releases its resources.
	Close() error
}

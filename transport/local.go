package transport

import (
	"context"
	"sync"

	"github.com/nvsync/cachesync/types"
)

// LocalTransport is the no-op transport used when no distributed channel is
// configured. Broadcasts are discarded and nothing is ever received, so a
// coordinator built on it behaves as a standalone node.
type LocalTransport struct{}

// NewLocalTransport creates a new no-op transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{}
}

// Broadcast discards the event.
func (t *LocalTransport) Broadcast(ctx context.Context, event types.EvictionEvent) error {
	return nil
}

// Subscribe is a no-op.
func (t *LocalTransport) Subscribe(ctx context.Context) error {
	return nil
}

// OnEvent is a no-op; nothing is ever delivered.
func (t *LocalTransport) OnEvent(handler Handler) {}

// IsAvailable always reports false so AUTO mode resolves to local-only.
func (t *LocalTransport) IsAvailable() bool {
	return false
}

// Close is a no-op.
func (t *LocalTransport) Close() error {
	return nil
}

// ChannelTransport is an in-process transport backed by a Go channel. A
// broadcast is looped back to the transport's own handlers and to any linked
// peers, mirroring a real pub/sub channel where the publisher receives its
// own messages. Used by tests and single-binary multi-coordinator setups.
type ChannelTransport struct {
	mu       sync.RWMutex
	handlers []Handler
	peers    []*ChannelTransport

	events chan types.EvictionEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewChannelTransport creates a new in-process transport.
func NewChannelTransport() *ChannelTransport {
	return &ChannelTransport{
		events: make(chan types.EvictionEvent, 256),
		done:   make(chan struct{}),
	}
}

// Link connects two transports so each receives the other's broadcasts.
func (t *ChannelTransport) Link(peer *ChannelTransport) {
	t.mu.Lock()
	t.peers = append(t.peers, peer)
	t.mu.Unlock()

	peer.mu.Lock()
	peer.peers = append(peer.peers, t)
	peer.mu.Unlock()
}

// Broadcast delivers the event to this transport and to all linked peers.
func (t *ChannelTransport) Broadcast(ctx context.Context, event types.EvictionEvent) error {
	t.mu.RLock()
	peers := t.peers
	t.mu.RUnlock()

	if err := t.deliver(ctx, event); err != nil {
		return err
	}
	for _, peer := range peers {
		if err := peer.deliver(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (t *ChannelTransport) deliver(ctx context.Context, event types.EvictionEvent) error {
	select {
	case <-t.done:
		return ErrTransportUnavailable
	default:
	}

	select {
	case t.events <- event:
		return nil
	case <-t.done:
		return ErrTransportUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe starts the dispatch goroutine.
func (t *ChannelTransport) Subscribe(ctx context.Context) error {
	t.wg.Add(1)
	go t.dispatch()
	return nil
}

// OnEvent registers a handler for received events.
func (t *ChannelTransport) OnEvent(handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// IsAvailable reports whether the transport is open.
func (t *ChannelTransport) IsAvailable() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Close stops the transport.
func (t *ChannelTransport) Close() error {
	t.once.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
	return nil
}

func (t *ChannelTransport) dispatch() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case event := <-t.events:
			t.mu.RLock()
			handlers := t.handlers
			t.mu.RUnlock()

			for _, handler := range handlers {
				handler(event)
			}
		}
	}
}

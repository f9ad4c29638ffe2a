package transport

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nvsync/cachesync/types"
)

// RedisTransport broadcasts eviction events over a Redis pub/sub channel.
type RedisTransport struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	codec      Codec

	pubsub *redis.PubSub

	handlers      []Handler
	handlersMutex sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

// RedisConfig configures a RedisTransport.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string

	// Password is the optional Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// Channel is the pub/sub channel events travel on.
	Channel string

	// Format is the wire encoding ("json" or "msgpack"). Defaults to json.
	Format string
}

// NewRedisTransport creates a transport backed by a new Redis client. The
// connection is verified before the transport is returned.
func NewRedisTransport(cfg RedisConfig) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	t, err := NewRedisTransportFromClient(client, cfg.Channel, cfg.Format)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	t.ownsClient = true
	return t, nil
}

// NewRedisTransportFromClient creates a transport over an existing Redis
// client. The caller keeps ownership of the client.
func NewRedisTransportFromClient(client *redis.Client, channel, format string) (*RedisTransport, error) {
	if format == "" {
		format = "json"
	}
	codec, err := NewCodec(format)
	if err != nil {
		return nil, err
	}

	return &RedisTransport{
		client:  client,
		channel: channel,
		codec:   codec,
		done:    make(chan struct{}),
	}, nil
}

// Broadcast publishes an event to the channel.
func (t *RedisTransport) Broadcast(ctx context.Context, event types.EvictionEvent) error {
	data, err := t.codec.Marshal(event)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, t.channel, data).Err()
}

// Subscribe starts listening for events on the channel.
func (t *RedisTransport) Subscribe(ctx context.Context) error {
	t.pubsub = t.client.Subscribe(ctx, t.channel)

	t.wg.Add(1)
	go t.listen()

	return nil
}

// OnEvent registers a handler for received events.
func (t *RedisTransport) OnEvent(handler Handler) {
	t.handlersMutex.Lock()
	defer t.handlersMutex.Unlock()
	t.handlers = append(t.handlers, handler)
}

// IsAvailable reports whether the Redis server is reachable.
func (t *RedisTransport) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return t.client.Ping(ctx).Err() == nil
}

// Close stops the transport.
func (t *RedisTransport) Close() error {
	close(t.done)
	t.wg.Wait()

	var err error
	if t.pubsub != nil {
		err = t.pubsub.Close()
	}
	if t.ownsClient {
		if cerr := t.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// listen delivers received events to registered handlers. Messages that fail
// to decode are skipped.
func (t *RedisTransport) listen() {
	defer t.wg.Done()

	if t.pubsub == nil {
		return
	}

	ch := t.pubsub.Channel()

	for {
		select {
		case <-t.done:
			return
		case msg := <-ch:
			if msg == nil {
				return
			}

			var event types.EvictionEvent
			if err := t.codec.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}

			t.handlersMutex.RLock()
			handlers := t.handlers
			t.handlersMutex.RUnlock()

			for _, handler := range handlers {
				handler(event)
			}
		}
	}
}

// Package events carries review.Event push notifications over Redis pub/sub,
// one channel per document.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reoring/schemaform/review"
)

// DefaultPrefix namespaces document channels.
const DefaultPrefix = "schemaform:documents:"

// Bus publishes and subscribes document events.
type Bus struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(p string) Option { return func(b *Bus) { b.prefix = p } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBus connects to the Redis server at redisURL.
func NewBus(redisURL string, opts ...Option) (*Bus, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewBusWithClient(client, opts...), nil
}

// NewBusWithClient creates a bus from an existing client.
func NewBusWithClient(client *redis.Client, opts ...Option) *Bus {
	b := &Bus{client: client, prefix: DefaultPrefix, log: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Close closes the underlying client.
func (b *Bus) Close() error { return b.client.Close() }

// Ping checks connectivity.
func (b *Bus) Ping(ctx context.Context) error { return b.client.Ping(ctx).Err() }

func (b *Bus) channel(documentID string) string { return b.prefix + documentID }

// Publish sends ev on its document's channel.
func (b *Bus) Publish(ctx context.Context, ev review.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.DocumentID), payload).Err(); err != nil {
		return fmt.Errorf("publish event for %s: %w", ev.DocumentID, err)
	}
	return nil
}

// Subscribe delivers events for documentID to handler, one at a time, until
// ctx is done or stop is called. stop waits for the delivery goroutine to
// exit. Malformed payloads are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, documentID string, handler func(review.Event)) (stop func(), err error) {
	sub := b.client.Subscribe(ctx, b.channel(documentID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", documentID, err)
	}

	done := make(chan struct{})
	quit := make(chan struct{})
	go func() {
		defer close(done)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev review.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			sub.Close()
			<-done
		})
	}, nil
}

package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/schemaform/events"
	"github.com/reoring/schemaform/review"
)

func setupBus(t *testing.T) (*events.Bus, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	bus, err := events.NewBus("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus, s
}

func TestNewBus_BadURL(t *testing.T) {
	_, err := events.NewBus("not a url")
	assert.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	bus, _ := setupBus(t)
	ctx := context.Background()

	got := make(chan review.Event, 4)
	stop, err := bus.Subscribe(ctx, "doc-1", func(ev review.Event) { got <- ev })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, bus.Publish(ctx, review.Event{DocumentID: "doc-2", Status: "ignored"}))
	require.NoError(t, bus.Publish(ctx, review.Event{DocumentID: "doc-1", Progress: 50, Status: "processing"}))

	select {
	case ev := <-got:
		assert.Equal(t, review.Event{DocumentID: "doc-1", Progress: 50, Status: "processing"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSubscribe_SkipsMalformedPayload(t *testing.T) {
	bus, s := setupBus(t)
	ctx := context.Background()

	got := make(chan review.Event, 4)
	stop, err := bus.Subscribe(ctx, "doc-1", func(ev review.Event) { got <- ev })
	require.NoError(t, err)
	defer stop()

	s.Publish(events.DefaultPrefix+"doc-1", "{not json")
	require.NoError(t, bus.Publish(ctx, review.Event{DocumentID: "doc-1", Status: "completed"}))

	select {
	case ev := <-got:
		assert.Equal(t, "completed", ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	bus := events.NewBusWithClient(client, events.WithPrefix("test:"))
	defer bus.Close()

	stop, err := bus.Subscribe(context.Background(), "doc-1", func(review.Event) {})
	require.NoError(t, err)
	stop()
	stop()
	assert.NoError(t, bus.Ping(context.Background()))
}

func TestSubscribe_EndsWithContext(t *testing.T) {
	bus, _ := setupBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	stop, err := bus.Subscribe(ctx, "doc-1", func(review.Event) {})
	require.NoError(t, err)
	cancel()
	stop() // returns once the delivery goroutine has exited
}

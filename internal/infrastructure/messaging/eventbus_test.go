package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func syncBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: false, EnableMetrics: true}
}

func moduleEvent(eventType shared.EventType) shared.Event {
	return shared.NewModuleEvent(eventType, "block://c1/problem/p1", "student-1", "c1", "problem")
}

func TestInMemoryBus_PublishToSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var rendered, dispatched []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(e shared.Event) error {
		rendered = append(rendered, e)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventModuleDispatched, func(e shared.Event) error {
		dispatched = append(dispatched, e)
		return nil
	}))

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))

	require.Len(t, rendered, 1)
	assert.Equal(t, "block://c1/problem/p1", rendered[0].AggregateID())
	assert.Empty(t, dispatched)
}

func TestInMemoryBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleDispatched)))

	assert.Equal(t, []shared.EventType{shared.EventModuleRendered, shared.EventModuleDispatched}, seen)
}

func TestInMemoryBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	secondCalled := false
	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error {
		return errors.New("first handler broke")
	}))
	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error {
		secondCalled = true
		return nil
	}))

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	assert.True(t, secondCalled)
}

func TestInMemoryBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryBus_ClosedRejectsOperations(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(moduleEvent(shared.EventModuleRendered)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Closing twice is harmless.
	assert.NoError(t, bus.Close())
}

func TestInMemoryBus_Metrics(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(shared.EventModuleRendered, func(shared.Event) error {
		return errors.New("broken")
	}))
	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
}

// ─────────────────────────────────────────────────────────────────────────────
// Buffered bus
// ─────────────────────────────────────────────────────────────────────────────

func TestBufferedBus_FlushesWhenFull(t *testing.T) {
	inner := NewInMemoryEventBus(syncBusConfig())
	defer inner.Close()

	var received []shared.Event
	require.NoError(t, inner.SubscribeAll(func(e shared.Event) error {
		received = append(received, e)
		return nil
	}))

	bus := NewBufferedEventBus(BufferedEventBusConfig{
		Inner:         inner,
		BufferSize:    3,
		FlushInterval: time.Hour, // only size-triggered flushes in this test
	})
	defer bus.Close()

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	assert.Empty(t, received)

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	assert.Len(t, received, 3)
}

func TestBufferedBus_ManualFlushAndClose(t *testing.T) {
	inner := NewInMemoryEventBus(syncBusConfig())
	defer inner.Close()

	var received []shared.Event
	require.NoError(t, inner.SubscribeAll(func(e shared.Event) error {
		received = append(received, e)
		return nil
	}))

	bus := NewBufferedEventBus(BufferedEventBusConfig{
		Inner:         inner,
		BufferSize:    100,
		FlushInterval: time.Hour,
	})

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))
	require.NoError(t, bus.Flush())
	assert.Len(t, received, 1)

	// Events still buffered at close time are not lost.
	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleDispatched)))
	require.NoError(t, bus.Close())
	assert.Len(t, received, 2)

	assert.ErrorIs(t, bus.Publish(moduleEvent(shared.EventModuleRendered)), ErrEventBusClosed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis bus (fake client)
// ─────────────────────────────────────────────────────────────────────────────

type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	incoming  chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{incoming: make(chan RedisMessage, 16)}
}

func (c *fakeRedisClient) Publish(_ context.Context, _ string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message.(string))
	return nil
}

func (c *fakeRedisClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	return c.incoming, nil
}

func (c *fakeRedisClient) Close() error { return nil }

func (c *fakeRedisClient) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func TestRedisBus_PublishesLocallyAndToRedis(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "node-a",
		LocalBusConfig: syncBusConfig(),
	})
	require.NoError(t, err)
	defer bus.Close()

	var local []shared.Event
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		local = append(local, e)
		return nil
	}))

	require.NoError(t, bus.Publish(moduleEvent(shared.EventModuleRendered)))

	assert.Len(t, local, 1)
	assert.Equal(t, 1, client.publishedCount())
}

func TestRedisBus_DeliversRemoteEventsSkippingOwn(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "node-a",
		LocalBusConfig: syncBusConfig(),
	})
	require.NoError(t, err)
	defer bus.Close()

	var mu sync.Mutex
	var seen []string
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		seen = append(seen, e.AggregateID())
		mu.Unlock()
		return nil
	}))

	// An event echoed back from this instance is dropped; one from another
	// node is delivered to local handlers.
	client.incoming <- RedisMessage{Payload: `{"instance_id":"node-a","event_type":"module.rendered","aggregate_id":"own"}`}
	client.incoming <- RedisMessage{Payload: `{"instance_id":"node-b","event_type":"module.rendered","aggregate_id":"remote"}`}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"remote"}, seen)
}

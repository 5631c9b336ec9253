package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presenca-hub/presenca-engine/internal/domain/shared"
)

func newSyncBus(t *testing.T) *InMemoryEventBus {
	t.Helper()

	config := DefaultInMemoryEventBusConfig()
	config.AsyncMode = false

	bus := NewInMemoryEventBus(config)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestInMemoryEventBus_DeliversToSubscribedType(t *testing.T) {
	bus := newSyncBus(t)

	var received []shared.Event
	err := bus.Subscribe(shared.EventPeriodRecomputed, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(shared.NewPeriodRecomputedEvent("period-1", 1, 10, 2025, 12, 3, 0))
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventPeriodRecomputed, received[0].EventType())
	assert.Equal(t, "period-1", received[0].AggregateID())
}

func TestInMemoryEventBus_IgnoresOtherTypes(t *testing.T) {
	bus := newSyncBus(t)

	calls := 0
	err := bus.Subscribe(shared.EventThresholdChanged, func(shared.Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(shared.NewCarenciaResolvedEvent("record-1", 7, "resolvido"))
	require.NoError(t, err)

	assert.Zero(t, calls)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus(t)

	var seen []shared.EventType
	err := bus.SubscribeAll(func(event shared.Event) error {
		seen = append(seen, event.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewFollowUpStartedEvent("record-1", 7, "")))
	require.NoError(t, bus.Publish(shared.NewThresholdChangedEvent("period-1", 75, 80)))

	assert.Equal(t, []shared.EventType{shared.EventFollowUpStarted, shared.EventThresholdChanged}, seen)
}

func TestInMemoryEventBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	bus := newSyncBus(t)

	err := bus.Subscribe(shared.EventCarenciaPending, func(shared.Event) error {
		return errors.New("boom")
	})
	require.NoError(t, err)

	err = bus.Publish(shared.NewCarenciaPendingEvent("record-1", "period-1", 7, 25, 75))
	assert.NoError(t, err)

	require.NotNil(t, bus.Metrics())
	assert.Equal(t, int64(1), bus.Metrics().Published(shared.EventCarenciaPending))
	assert.Equal(t, int64(1), bus.Metrics().Failed(shared.EventCarenciaPending))
}

func TestInMemoryEventBus_AsyncModeDeliversBeforeClose(t *testing.T) {
	config := DefaultInMemoryEventBusConfig()
	config.WorkerPoolSize = 2

	bus := NewInMemoryEventBus(config)

	var mu sync.Mutex
	delivered := 0
	err := bus.Subscribe(shared.EventPeriodRecomputed, func(shared.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewPeriodRecomputedEvent("period-1", 1, 10, 2025, 1, 0, 0)))
	}

	// Close waits for pending handlers, so every publish is accounted for.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, delivered)
}

func TestInMemoryEventBus_RejectsAfterClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewThresholdChangedEvent("period-1", 75, 80))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventThresholdChanged, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := newSyncBus(t)

	assert.Error(t, bus.Subscribe(shared.EventPeriodRecomputed, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestEventBusMetrics_Counters(t *testing.T) {
	metrics := NewEventBusMetrics()

	metrics.RecordPublish(shared.EventPeriodRecomputed)
	metrics.RecordPublish(shared.EventPeriodRecomputed)
	metrics.RecordHandlerExecution(shared.EventPeriodRecomputed, time.Millisecond, true)
	metrics.RecordHandlerExecution(shared.EventPeriodRecomputed, time.Millisecond, false)

	assert.Equal(t, int64(2), metrics.Published(shared.EventPeriodRecomputed))
	assert.Equal(t, int64(1), metrics.Failed(shared.EventPeriodRecomputed))
	assert.Zero(t, metrics.Published(shared.EventThresholdChanged))
}

package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConsumer implements Consumer for testing
type mockConsumer struct {
	name           string
	processedCount atomic.Int32
	errorOnProcess bool
	processDelay   time.Duration
	mu             sync.Mutex
	events         []TrackingEvent
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) ProcessEvent(event TrackingEvent) error {
	if m.processDelay > 0 {
		time.Sleep(m.processDelay)
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	m.processedCount.Add(1)

	if m.errorOnProcess {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *mockConsumer) ProcessBatch(events []TrackingEvent) error {
	for _, event := range events {
		if err := m.ProcessEvent(event); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockConsumer) SupportsBatching() bool { return false }

func (m *mockConsumer) GetEvents() []TrackingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]TrackingEvent, len(m.events))
	copy(events, m.events)
	return events
}

// waitForProcessed waits for the consumer to process n events or times out
func waitForProcessed(t *testing.T, consumer *mockConsumer, expected int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if consumer.processedCount.Load() >= expected {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d processed events, got %d",
		expected, consumer.processedCount.Load())
}

func mustEvent(t *testing.T, plate, action, camera string, path []string) TrackingEvent {
	t.Helper()
	ev, err := NewTrackingEvent(plate, action, camera, path, "")
	require.NoError(t, err)
	return ev
}

func TestNewTrackingEventValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTrackingEvent("", "ENTRY", "camera1", nil, "")
	assert.Error(t, err)

	_, err = NewTrackingEvent("MH20EE7598", "", "camera1", nil, "")
	assert.Error(t, err)

	ev, err := NewTrackingEvent("MH20EE7598", "ENTRY", "camera1", []string{"camera1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "MH20EE7598", ev.GetPlate())
	assert.Equal(t, "ENTRY", ev.GetAction())
	assert.WithinDuration(t, time.Now(), ev.GetTimestamp(), time.Second)
}

func TestTrackingEventPathIsolation(t *testing.T) {
	t.Parallel()

	path := []string{"camera1", "camera2"}
	ev := mustEvent(t, "MH20EE7598", "MOVED", "camera2", path)

	path[0] = "mutated"
	assert.Equal(t, []string{"camera1", "camera2"}, ev.GetPath())
}

func TestPublishAndConsume(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 16, Workers: 2})
	defer func() { require.NoError(t, eb.Shutdown(time.Second)) }()

	consumer := &mockConsumer{name: "test"}
	require.NoError(t, eb.RegisterConsumer(consumer))

	ev := mustEvent(t, "MH20EE7598", "ENTRY", "camera1", []string{"camera1"})
	assert.True(t, eb.TryPublish(ev))

	waitForProcessed(t, consumer, 1, time.Second)

	events := consumer.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "MH20EE7598", events[0].GetPlate())

	stats := eb.GetStats()
	assert.Equal(t, uint64(1), stats.EventsReceived)
	assert.Equal(t, uint64(1), stats.EventsProcessed)
}

func TestPublishWithoutConsumers(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 16, Workers: 1})

	ev := mustEvent(t, "MH20EE7598", "ENTRY", "camera1", nil)
	assert.False(t, eb.TryPublish(ev), "publish without consumers should not accept")
}

func TestDuplicateConsumerRejected(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 16, Workers: 1})
	defer func() { require.NoError(t, eb.Shutdown(time.Second)) }()

	require.NoError(t, eb.RegisterConsumer(&mockConsumer{name: "dup"}))
	assert.Error(t, eb.RegisterConsumer(&mockConsumer{name: "dup"}))
}

func TestConsumerErrorCounted(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 16, Workers: 1})
	defer func() { require.NoError(t, eb.Shutdown(time.Second)) }()

	consumer := &mockConsumer{name: "failing", errorOnProcess: true}
	require.NoError(t, eb.RegisterConsumer(consumer))

	eb.TryPublish(mustEvent(t, "MH20EE7598", "ENTRY", "camera1", nil))
	waitForProcessed(t, consumer, 1, time.Second)

	// Consumer error counter is updated after ProcessEvent returns
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if eb.GetStats().ConsumerErrors == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, uint64(1), eb.GetStats().ConsumerErrors)
}

func TestBufferFullDropsEvents(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 1, Workers: 1})
	defer func() { require.NoError(t, eb.Shutdown(2*time.Second)) }()

	consumer := &mockConsumer{name: "slow", processDelay: 100 * time.Millisecond}
	require.NoError(t, eb.RegisterConsumer(consumer))

	// First event occupies the worker, more than bufferSize pending events
	// must start dropping.
	dropped := 0
	for i := 0; i < 10; i++ {
		ev := mustEvent(t, "MH20EE7598", "ENTRY", "camera1", nil)
		if !eb.TryPublish(ev) {
			dropped++
		}
	}

	assert.Positive(t, dropped)
	assert.Positive(t, eb.GetStats().EventsDropped)
}

func TestShutdownStopsWorkers(t *testing.T) {
	t.Parallel()

	eb := New(&Config{BufferSize: 16, Workers: 4})
	require.NoError(t, eb.RegisterConsumer(&mockConsumer{name: "test"}))

	require.NoError(t, eb.Shutdown(time.Second))

	ev := mustEvent(t, "MH20EE7598", "ENTRY", "camera1", nil)
	assert.False(t, eb.TryPublish(ev), "publish after shutdown should not accept")
}

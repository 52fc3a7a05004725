package messaging

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

func opened(id string) shared.Event {
	return shared.NewSessionLifecycleEvent(shared.EventSessionOpened, id, "students")
}

func TestLocalBus_RoutesByType(t *testing.T) {
	bus := NewLocalBus(LocalBusConfig{})
	defer bus.Close()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventSessionOpened, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(opened("s1")))
	require.NoError(t, bus.Publish(shared.NewSessionLifecycleEvent(shared.EventSessionClosed, "s1", "students")))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)

	snap := bus.Stats().Snapshot()
	assert.Equal(t, int64(1), snap.Published[shared.EventSessionOpened])
	assert.Equal(t, int64(1), snap.Published[shared.EventSessionClosed])
	assert.Equal(t, int64(3), snap.HandlerRuns)
	assert.Zero(t, snap.HandlerFailures)
}

func TestLocalBus_HandlerFailuresAreCounted(t *testing.T) {
	bus := NewLocalBus(LocalBusConfig{})
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))

	// Neither failure reaches the publisher.
	require.NoError(t, bus.Publish(opened("s1")))

	snap := bus.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerRuns)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestLocalBus_WorkersDrainQueueOnClose(t *testing.T) {
	bus := NewLocalBus(LocalBusConfig{Workers: 2, QueueSize: 32})

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { n.Add(1); return nil }))

	for range 10 {
		require.NoError(t, bus.Publish(opened("s1")))
	}
	require.NoError(t, bus.Close())
	// Everything fit in the queue, so nothing was dropped.
	assert.Equal(t, int32(10), n.Load())
	assert.Equal(t, int64(10), bus.Stats().Snapshot().HandlerRuns)

	assert.ErrorIs(t, bus.Publish(opened("s1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventSessionOpened, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestLocalBus_RejectsNil(t *testing.T) {
	bus := NewLocalBus(LocalBusConfig{})
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventSessionOpened, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestStats_MeanHandlerTime(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.Snapshot().MeanHandlerTime)

	s.ran(10, nil)
	s.ran(30, errors.New("x"))
	snap := s.Snapshot()
	assert.EqualValues(t, 20, snap.MeanHandlerTime)
	assert.Equal(t, int64(1), snap.HandlerFailures)
}

func TestAuditHandler(t *testing.T) {
	h := AuditHandler(logger.Nop())
	assert.NoError(t, h(shared.NewBulkActionRunEvent("s1", "students", "export", []string{"1", "2"})))
}

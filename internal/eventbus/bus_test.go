package eventbus_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shaharia-lab/userhub/internal/eventbus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishAndReceive(t *testing.T) {
	bus := eventbus.New(2, nil)
	defer bus.Close()

	var received []eventbus.Event
	var mu sync.Mutex

	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	bus.Publish("user.created", map[string]string{"key": "value"})

	// Give workers time to process
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "user.created", received[0].Type)
	assert.NotEmpty(t, received[0].ID)
	assert.Equal(t, "value", received[0].Payload["key"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestMultipleListeners(t *testing.T) {
	bus := eventbus.New(2, nil)
	defer bus.Close()

	var count int32

	for i := 0; i < 3; i++ {
		bus.Subscribe(func(_ eventbus.Event) {
			atomic.AddInt32(&count, 1)
		})
	}

	bus.Publish("multi", nil)
	time.Sleep(50 * time.Millisecond)

	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestListenerPanicDoesNotCrash(t *testing.T) {
	bus := eventbus.New(1, nil)
	defer bus.Close()

	var goodCalled int32

	bus.Subscribe(func(_ eventbus.Event) {
		panic("intentional panic in listener")
	})
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&goodCalled, 1)
	})

	bus.Publish("panic.event", nil)
	time.Sleep(50 * time.Millisecond)

	// The second listener should still have been called.
	assert.EqualValues(t, 1, atomic.LoadInt32(&goodCalled))
}

func TestClose(t *testing.T) {
	bus := eventbus.New(2, nil)

	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})

	for i := 0; i < 5; i++ {
		bus.Publish("evt", nil)
	}

	// Close waits for all workers to finish processing.
	bus.Close()

	assert.EqualValues(t, 5, atomic.LoadInt32(&count))
}

func TestDefaultWorkers(t *testing.T) {
	// workers <= 0 should use default without panicking.
	bus := eventbus.New(0, nil)
	require.NotNil(t, bus)
	bus.Close()
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	bus := eventbus.New(1, nil)

	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})
	bus.Close()

	assert.NotPanics(t, func() { bus.Publish("late", nil) })
	assert.NotPanics(t, bus.Close)
	assert.EqualValues(t, 0, atomic.LoadInt32(&count))
}

func TestFilter(t *testing.T) {
	bus := eventbus.New(1, nil)

	var got []string
	var mu sync.Mutex
	bus.Subscribe(eventbus.Filter(func(e eventbus.Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	}, "user.created", "user.deleted"))

	bus.Publish("user.created", nil)
	bus.Publish("user.updated", nil)
	bus.Publish("user.deleted", nil)
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"user.created", "user.deleted"}, got)
}

func TestUniqueEventIDs(t *testing.T) {
	bus := eventbus.New(2, nil)

	var mu sync.Mutex
	ids := map[string]struct{}{}
	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		ids[e.ID] = struct{}{}
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		bus.Publish("evt", nil)
	}
	bus.Close()

	assert.Len(t, ids, 20)
}

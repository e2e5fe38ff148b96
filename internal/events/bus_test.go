package events

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Publish(MonthCompleted, &MonthCompletedData{Month: 5})

	msgA := <-a.C()
	msgB := <-b.C()
	assert.Equal(t, MonthCompleted, msgA.Event)
	assert.Equal(t, MonthCompleted, msgB.Event)
	assert.False(t, msgA.Timestamp.IsZero())
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(ClockStarted, nil)

	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected message after unsubscribe: %v", msg.Event)
	default:
	}
}

func TestBusUnsubscribeNilIsNoOp(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	bus.Unsubscribe(nil)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusFullMailboxDropsOldest(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	// Overfill the mailbox without draining it.
	for i := 0; i < DefaultMailboxSize+10; i++ {
		bus.Publish(TickWarning, &TickWarningData{NextMonth: i})
	}

	assert.Equal(t, uint64(10), sub.Dropped())

	// The oldest messages are gone; the first one received is the
	// 11th published.
	first := <-sub.C()
	data, ok := first.Data.(*TickWarningData)
	require.True(t, ok)
	assert.Equal(t, 10, data.NextMonth)

	// The newest message survived.
	var last Message
	for i := 0; i < DefaultMailboxSize-1; i++ {
		last = <-sub.C()
	}
	data, ok = last.Data.(*TickWarningData)
	require.True(t, ok)
	assert.Equal(t, DefaultMailboxSize+9, data.NextMonth)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	// A subscriber that never drains must not stall the publisher.
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultMailboxSize*5; i++ {
			bus.Publish(ClockSync, fmt.Sprintf("payload-%d", i))
		}
		close(done)
	}()

	<-done
	assert.Greater(t, sub.Dropped(), uint64(0))
}

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	bus.Publish(Event{Type: TypeDepositConfirmed, UserID: "u1"})

	evt := <-a
	assert.Equal(t, TypeDepositConfirmed, evt.Type)
	assert.Equal(t, "u1", evt.UserID)
	evt = <-b
	assert.Equal(t, TypeDepositConfirmed, evt.Type)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	// Overfill the subscriber buffer; extra events drop instead of blocking.
	for i := 0; i < 500; i++ {
		bus.Publish(Event{Type: TypeAccrual, UserID: "u1"})
	}
	assert.Len(t, ch, 100)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// double unsubscribe is a no-op
	bus.Unsubscribe(ch)
}

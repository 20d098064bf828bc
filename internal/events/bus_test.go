package events

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []Event
	bus.Subscribe(TradeExecuted, func(e Event) {
		received = append(received, e)
	})

	bus.Emit(TradeExecuted, "trading", map[string]interface{}{"userId": "alice"})

	require.Len(t, received, 1)
	assert.Equal(t, TradeExecuted, received[0].Type)
	assert.Equal(t, "trading", received[0].Module)
	assert.Equal(t, "alice", received[0].Data["userId"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestEmitOnlyMatchingType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var trades, carts int
	bus.Subscribe(TradeExecuted, func(Event) { trades++ })
	bus.Subscribe(CartUpdated, func(Event) { carts++ })

	bus.Emit(TradeExecuted, "trading", nil)
	bus.Emit(TradeExecuted, "trading", nil)
	bus.Emit(CartUpdated, "cart", nil)

	assert.Equal(t, 2, trades)
	assert.Equal(t, 1, carts)
}

func TestMultipleSubscribersSameType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var a, b bool
	bus.Subscribe(PriceUpdated, func(Event) { a = true })
	bus.Subscribe(PriceUpdated, func(Event) { b = true })

	bus.Emit(PriceUpdated, "stream", nil)

	assert.True(t, a)
	assert.True(t, b)
}

func TestEmitWithoutSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	// Must not panic
	bus.Emit(PositionClosed, "trading", nil)
}

func TestEmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received Event
	bus.Subscribe(ErrorOccurred, func(e Event) { received = e })

	bus.EmitError("cart", fmt.Errorf("boom"), map[string]interface{}{"userId": "alice"})

	assert.Equal(t, ErrorOccurred, received.Type)
	assert.Equal(t, "boom", received.Data["error"])
}

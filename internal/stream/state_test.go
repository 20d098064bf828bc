package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	// Fixed schedule: immediate, 2s, 10s, 30s, then steady 60s
	assert.Equal(t, time.Duration(0), backoffDelay(1))
	assert.Equal(t, 2*time.Second, backoffDelay(2))
	assert.Equal(t, 10*time.Second, backoffDelay(3))
	assert.Equal(t, 30*time.Second, backoffDelay(4))
	assert.Equal(t, 60*time.Second, backoffDelay(5))
	assert.Equal(t, 60*time.Second, backoffDelay(6))
	assert.Equal(t, 60*time.Second, backoffDelay(100))

	// Out-of-range attempts clamp to the first slot
	assert.Equal(t, time.Duration(0), backoffDelay(0))
	assert.Equal(t, time.Duration(0), backoffDelay(-3))
}

func TestStateTransitions(t *testing.T) {
	legal := []struct{ from, to ConnState }{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateConnected},
		{StateConnecting, StateReconnecting},
		{StateConnected, StateReconnecting},
		{StateReconnecting, StateConnected},
		{StateReconnecting, StateFallback},
		{StateFallback, StateConnected},
		{StateConnected, StateDisconnected},
		{StateFallback, StateDisconnected},
	}
	for _, tt := range legal {
		assert.True(t, CanTransition(tt.from, tt.to), "%s -> %s should be legal", tt.from, tt.to)
	}

	illegal := []struct{ from, to ConnState }{
		{StateDisconnected, StateConnected},
		{StateDisconnected, StateFallback},
		{StateConnected, StateConnecting},
		{StateConnected, StateFallback},
		{StateConnecting, StateFallback},
		{StateFallback, StateReconnecting},
	}
	for _, tt := range illegal {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s should be illegal", tt.from, tt.to)
	}
}

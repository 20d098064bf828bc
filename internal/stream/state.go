// Package stream connects to the upstream price feed and fans live prices
// out to websocket subscribers.
package stream

// ConnState is the price feed's connection state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	// StateFallback means the reconnect schedule is exhausted and prices
	// are being synthesized locally while retries continue in background.
	StateFallback ConnState = "fallback"
)

// validTransitions is the feed's full state machine. Anything not listed
// is a programming error.
var validTransitions = map[ConnState][]ConnState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateReconnecting, StateDisconnected},
	StateConnected:    {StateReconnecting, StateDisconnected},
	StateReconnecting: {StateConnecting, StateConnected, StateFallback, StateDisconnected},
	StateFallback:     {StateConnecting, StateConnected, StateDisconnected},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to ConnState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Package events provides the in-process event bus connecting the price
// feed, trading and portfolio modules to the websocket hub and logs.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	PriceUpdated     EventType = "PRICE_UPDATED"
	TradeExecuted    EventType = "TRADE_EXECUTED"
	CartUpdated      EventType = "CART_UPDATED"
	CheckoutComplete EventType = "CHECKOUT_COMPLETE"
	PositionClosed   EventType = "POSITION_CLOSED"
	FeedStateChanged EventType = "FEED_STATE_CHANGED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler receives events for a subscribed type. Handlers must not block;
// long work belongs in the handler's own goroutine.
type Handler func(Event)

// Bus handles event emission, logging and fan-out to subscribers.
type Bus struct {
	log zerolog.Logger

	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:      log.With().Str("component", "events").Logger(),
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type. Subscriptions are
// permanent; components subscribe once at startup.
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Emit emits an event to all subscribers of its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	// Price updates arrive every few seconds; logging each one would drown
	// everything else.
	if eventType == PriceUpdated {
		return
	}

	eventJSON, _ := json.Marshal(event)
	b.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits an error event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	b.Emit(ErrorOccurred, module, data)
}

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/coincart/coincart/internal/events"
	"github.com/coincart/coincart/internal/modules/assets"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// steadyRetryDelay is the retry cadence once the scheduled backoff is
	// exhausted and the feed has dropped into fallback.
	steadyRetryDelay = 60 * time.Second

	// fallbackPollInterval is how often the fallback poller synthesizes a
	// price tick while the upstream feed is unreachable.
	fallbackPollInterval = 5 * time.Second

	// fallbackDriftPct bounds the per-tick random drift of fallback prices.
	fallbackDriftPct = 0.0025
)

// reconnectSchedule is the fixed backoff before each reconnect attempt:
// the first retry is immediate, then 2s, 10s, 30s. After the schedule is
// exhausted the feed enters fallback and keeps retrying at steadyRetryDelay.
var reconnectSchedule = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// backoffDelay returns the wait before reconnect attempt n (1-based).
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt <= len(reconnectSchedule) {
		return reconnectSchedule[attempt-1]
	}
	return steadyRetryDelay
}

// feedMessage is one message from the upstream price stream.
type feedMessage struct {
	Type   string      `json:"type"`
	Prices []feedPrice `json:"prices"`
}

// feedPrice is a single asset price tick.
type feedPrice struct {
	AssetID   string  `json:"assetId"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Feed maintains the connection to the upstream price stream. Incoming
// ticks are written into the quote cache and published on the event bus;
// the websocket hub subscribes there and pushes them to browsers.
type Feed struct {
	url string

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	state      ConnState

	bus    *events.Bus
	oracle *assets.Oracle
	log    zerolog.Logger

	reconnecting bool
	stopChan     chan struct{}
	stopped      bool

	// fallbackStop cancels the fallback poller when a reconnect succeeds
	fallbackStop chan struct{}

	// lastPrices seeds the fallback poller with the most recent real ticks
	priceMu    sync.RWMutex
	lastPrices map[string]float64
}

// NewFeed creates a new price feed client. An empty url disables the feed
// entirely; Start becomes a no-op.
func NewFeed(url string, oracle *assets.Oracle, bus *events.Bus, log zerolog.Logger) *Feed {
	return &Feed{
		url:        url,
		bus:        bus,
		oracle:     oracle,
		log:        log.With().Str("component", "price_feed").Logger(),
		state:      StateDisconnected,
		stopChan:   make(chan struct{}),
		lastPrices: make(map[string]float64),
	}
}

// State returns the current connection state (thread-safe).
func (f *Feed) State() ConnState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// setState applies a state transition, rejecting illegal ones, and
// announces the change on the event bus.
func (f *Feed) setState(to ConnState) {
	f.mu.Lock()
	from := f.state
	if from == to {
		f.mu.Unlock()
		return
	}
	if !CanTransition(from, to) {
		f.mu.Unlock()
		f.log.Error().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Illegal feed state transition, ignoring")
		return
	}
	f.state = to
	f.mu.Unlock()

	f.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("Feed state changed")
	if f.bus != nil {
		f.bus.Emit(events.FeedStateChanged, "stream", map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
	}
}

// Start connects to the upstream feed and begins streaming. A failed
// initial connect drops straight into the reconnect schedule.
func (f *Feed) Start() error {
	if f.url == "" {
		f.log.Info().Msg("No feed URL configured, price stream disabled")
		return nil
	}

	f.log.Info().Str("url", f.url).Msg("Starting price feed")

	f.setState(StateConnecting)
	if err := f.connect(); err != nil {
		f.log.Warn().Err(err).Msg("Initial feed connection failed, entering reconnect schedule")
		f.setState(StateReconnecting)
		go f.reconnectLoop()
		return err
	}

	f.setState(StateConnected)

	f.mu.RLock()
	ctx := f.connCtx
	f.mu.RUnlock()
	go f.readMessages(ctx)

	return nil
}

// Stop shuts the feed down promptly, including any in-progress backoff wait
// or fallback poller.
func (f *Feed) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	f.mu.Unlock()

	f.log.Info().Msg("Stopping price feed")
	close(f.stopChan)
	f.stopFallback()
	return f.disconnect()
}

// connect dials the upstream feed and sends the subscribe frame.
func (f *Feed) connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial feed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	f.conn = conn
	f.connCtx = connCtx
	f.cancelFunc = connCancel

	subscribe := map[string]string{"action": "subscribe", "channel": "prices"}
	data, _ := json.Marshal(subscribe)

	writeCtx, cancel := context.WithTimeout(connCtx, writeWait)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		connCancel()
		_ = conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		f.conn = nil
		f.connCtx = nil
		f.cancelFunc = nil
		return fmt.Errorf("failed to subscribe to price channel: %w", err)
	}

	return nil
}

// disconnect closes the upstream connection.
func (f *Feed) disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return nil
	}

	if f.cancelFunc != nil {
		f.cancelFunc()
		f.cancelFunc = nil
	}

	err := f.conn.Close(websocket.StatusNormalClosure, "")
	f.conn = nil
	f.connCtx = nil

	if err != nil {
		return fmt.Errorf("error closing feed connection: %w", err)
	}
	return nil
}

// readMessages consumes ticks until the connection drops, then hands off
// to the reconnect loop.
func (f *Feed) readMessages(ctx context.Context) {
	defer func() {
		f.mu.RLock()
		stopped := f.stopped
		f.mu.RUnlock()
		if !stopped {
			f.setState(StateReconnecting)
			go f.reconnectLoop()
		}
	}()

	for {
		select {
		case <-f.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				f.log.Info().Msg("Feed closed normally")
			} else if ctx.Err() == nil {
				f.log.Error().Err(err).Msg("Feed read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := f.handleMessage(message); err != nil {
			f.log.Error().Err(err).Msg("Failed to handle feed message")
		}
	}
}

// handleMessage applies one upstream message to the cache and event bus.
func (f *Feed) handleMessage(message []byte) error {
	var msg feedMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("failed to parse feed message: %w", err)
	}
	if msg.Type != "" && msg.Type != "prices" {
		return nil
	}

	for _, p := range msg.Prices {
		if p.AssetID == "" || p.Price <= 0 {
			continue
		}
		at := time.Now()
		if p.Timestamp > 0 {
			at = time.UnixMilli(p.Timestamp)
		}
		f.publish(p.AssetID, p.Price, at, false)
	}
	return nil
}

// publish records a tick and announces it on the bus.
func (f *Feed) publish(assetID string, price float64, at time.Time, simulated bool) {
	f.priceMu.Lock()
	f.lastPrices[assetID] = price
	f.priceMu.Unlock()

	if f.oracle != nil {
		f.oracle.UpdateQuote(assetID, price, at)
	}
	if f.bus != nil {
		f.bus.Emit(events.PriceUpdated, "stream", map[string]interface{}{
			"assetId":   assetID,
			"price":     price,
			"timestamp": at.UnixMilli(),
			"simulated": simulated,
		})
	}
}

// reconnectLoop walks the backoff schedule. When the schedule is exhausted
// it drops the feed into fallback and keeps retrying at the steady cadence.
func (f *Feed) reconnectLoop() {
	f.mu.Lock()
	if f.reconnecting || f.stopped {
		f.mu.Unlock()
		return
	}
	f.reconnecting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.reconnecting = false
		f.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-f.stopChan:
			return
		default:
		}

		attempt++
		delay := backoffDelay(attempt)

		if attempt == len(reconnectSchedule)+1 {
			f.log.Warn().Msg("Reconnect schedule exhausted, starting fallback price simulation")
			f.setState(StateFallback)
			f.startFallback()
		}

		f.log.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Reconnecting to price feed")

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-f.stopChan:
				return
			}
		}

		if err := f.connect(); err != nil {
			f.log.Error().Err(err).Int("attempt", attempt).Msg("Feed reconnect failed")
			continue
		}

		f.stopFallback()
		f.setState(StateConnected)
		f.log.Info().Int("attempt", attempt).Msg("Feed reconnected")

		f.mu.RLock()
		ctx := f.connCtx
		f.mu.RUnlock()
		go f.readMessages(ctx)
		return
	}
}

// startFallback launches the simulated price poller. Idempotent.
func (f *Feed) startFallback() {
	f.mu.Lock()
	if f.fallbackStop != nil || f.stopped {
		f.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	f.fallbackStop = stop
	f.mu.Unlock()

	go f.fallbackLoop(stop)
}

// stopFallback halts the simulated poller if it is running. Idempotent.
func (f *Feed) stopFallback() {
	f.mu.Lock()
	if f.fallbackStop != nil {
		close(f.fallbackStop)
		f.fallbackStop = nil
	}
	f.mu.Unlock()
}

// fallbackLoop synthesizes price ticks by drifting the last known prices a
// fraction of a percent each interval. Ticks are marked simulated so
// clients can show a degraded-data indicator.
func (f *Feed) fallbackLoop(stop chan struct{}) {
	f.seedFallbackPrices()

	ticker := time.NewTicker(fallbackPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-f.stopChan:
			return
		case <-ticker.C:
			f.priceMu.RLock()
			snapshot := make(map[string]float64, len(f.lastPrices))
			for id, price := range f.lastPrices {
				snapshot[id] = price
			}
			f.priceMu.RUnlock()

			now := time.Now()
			for id, price := range snapshot {
				drift := 1 + (rand.Float64()*2-1)*fallbackDriftPct
				f.publish(id, price*drift, now, true)
			}
		}
	}
}

// seedFallbackPrices fills lastPrices from the quote cache when the feed
// died before delivering a single tick.
func (f *Feed) seedFallbackPrices() {
	f.priceMu.RLock()
	empty := len(f.lastPrices) == 0
	f.priceMu.RUnlock()
	if !empty || f.oracle == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listing, err := f.oracle.GetAssets(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("Could not seed fallback prices")
		return
	}

	f.priceMu.Lock()
	for _, a := range listing {
		if a.CurrentPrice > 0 {
			f.lastPrices[a.ID] = a.CurrentPrice
		}
	}
	f.priceMu.Unlock()
}

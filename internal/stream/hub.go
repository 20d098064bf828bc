package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/coincart/coincart/internal/events"
)

const (
	// broadcastInterval batches price ticks so a burst of updates becomes
	// one frame per client instead of dozens.
	broadcastInterval = time.Second

	// clientBufferSize bounds the per-client send queue. A slow client
	// drops frames rather than stalling the hub.
	clientBufferSize = 64

	snapshotFile = "price_snapshot.msgpack"
)

// Tick is the latest known state of one asset's price as pushed to clients.
type Tick struct {
	AssetID   string  `json:"assetId" msgpack:"assetId"`
	Price     float64 `json:"price" msgpack:"price"`
	Direction string  `json:"direction" msgpack:"direction"` // up, down, flat
	Timestamp int64   `json:"timestamp" msgpack:"timestamp"`
	Simulated bool    `json:"simulated" msgpack:"simulated"`
}

// wireMessage is a frame sent to websocket clients.
type wireMessage struct {
	Type    string `json:"type"`
	Updates []Tick `json:"updates"`
}

// controlMessage is a frame received from websocket clients.
type controlMessage struct {
	Action string   `json:"action"` // subscribe, unsubscribe
	Assets []string `json:"assets"`
}

// client is one connected websocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte

	// subs holds asset IDs the client asked for; empty means everything
	subsMu sync.RWMutex
	subs   map[string]bool
}

func (c *client) wants(assetID string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	if len(c.subs) == 0 {
		return true
	}
	return c.subs[assetID]
}

// Hub fans price ticks out to websocket clients. It consumes PriceUpdated
// events from the bus, batches them, and pushes one frame per interval. The
// latest tick per asset is persisted as a msgpack snapshot so restarts can
// greet clients with prices immediately.
type Hub struct {
	snapshotPath string
	log          zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	ticks   map[string]Tick

	pendingMu sync.Mutex
	pending   map[string]Tick

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub, restores the last snapshot if one exists, and
// subscribes to price events on the bus.
func NewHub(bus *events.Bus, dataDir string, log zerolog.Logger) *Hub {
	h := &Hub{
		snapshotPath: filepath.Join(dataDir, snapshotFile),
		log:          log.With().Str("component", "price_hub").Logger(),
		clients:      make(map[*client]struct{}),
		ticks:        make(map[string]Tick),
		pending:      make(map[string]Tick),
		stopChan:     make(chan struct{}),
	}

	h.loadSnapshot()

	if bus != nil {
		bus.Subscribe(events.PriceUpdated, h.onPriceEvent)
	}

	return h
}

// Start launches the broadcast loop.
func (h *Hub) Start() {
	go h.broadcastLoop()
}

// Stop halts broadcasting, closes all client connections and persists the
// final snapshot.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)

		h.mu.Lock()
		for c := range h.clients {
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		h.clients = make(map[*client]struct{})
		h.mu.Unlock()

		h.saveSnapshot()
	})
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// onPriceEvent folds one bus event into the pending batch.
func (h *Hub) onPriceEvent(event events.Event) {
	assetID, _ := event.Data["assetId"].(string)
	price, _ := event.Data["price"].(float64)
	if assetID == "" || price <= 0 {
		return
	}
	simulated, _ := event.Data["simulated"].(bool)

	ts := event.Timestamp.UnixMilli()
	if raw, ok := event.Data["timestamp"].(int64); ok && raw > 0 {
		ts = raw
	}

	h.mu.RLock()
	prev, hadPrev := h.ticks[assetID]
	h.mu.RUnlock()

	direction := "flat"
	if hadPrev {
		switch {
		case price > prev.Price:
			direction = "up"
		case price < prev.Price:
			direction = "down"
		}
	}

	tick := Tick{
		AssetID:   assetID,
		Price:     price,
		Direction: direction,
		Timestamp: ts,
		Simulated: simulated,
	}

	h.mu.Lock()
	h.ticks[assetID] = tick
	h.mu.Unlock()

	h.pendingMu.Lock()
	h.pending[assetID] = tick
	h.pendingMu.Unlock()
}

// broadcastLoop flushes the pending batch to clients every interval.
func (h *Hub) broadcastLoop() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			h.flush()
		}
	}
}

func (h *Hub) flush() {
	h.pendingMu.Lock()
	if len(h.pending) == 0 {
		h.pendingMu.Unlock()
		return
	}
	batch := h.pending
	h.pending = make(map[string]Tick)
	h.pendingMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		updates := make([]Tick, 0, len(batch))
		for assetID, tick := range batch {
			if c.wants(assetID) {
				updates = append(updates, tick)
			}
		}
		if len(updates) == 0 {
			continue
		}
		sort.Slice(updates, func(i, j int) bool { return updates[i].AssetID < updates[j].AssetID })

		frame, err := json.Marshal(wireMessage{Type: "prices", Updates: updates})
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode price frame")
			continue
		}

		select {
		case c.send <- frame:
		default:
			h.log.Warn().Msg("Client send buffer full, dropping frame")
		}
	}
}

// ServeHTTP upgrades GET /ws/prices to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
		subs: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", count).Msg("Price stream client connected")

	// Greet the client with the full last-known snapshot
	if frame := h.snapshotFrame(); frame != nil {
		select {
		case c.send <- frame:
		default:
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	h.mu.Lock()
	delete(h.clients, c)
	count = len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", count).Msg("Price stream client disconnected")

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// snapshotFrame encodes the latest tick for every asset.
func (h *Hub) snapshotFrame() []byte {
	h.mu.RLock()
	updates := make([]Tick, 0, len(h.ticks))
	for _, tick := range h.ticks {
		updates = append(updates, tick)
	}
	h.mu.RUnlock()

	if len(updates) == 0 {
		return nil
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].AssetID < updates[j].AssetID })

	frame, err := json.Marshal(wireMessage{Type: "snapshot", Updates: updates})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode snapshot frame")
		return nil
	}
	return frame
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case frame := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readLoop consumes subscribe/unsubscribe control frames until the client
// goes away.
func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		msgType, message, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(message, &ctrl); err != nil {
			h.log.Debug().Err(err).Msg("Ignoring malformed control frame")
			continue
		}

		c.subsMu.Lock()
		switch ctrl.Action {
		case "subscribe":
			for _, id := range ctrl.Assets {
				c.subs[id] = true
			}
		case "unsubscribe":
			for _, id := range ctrl.Assets {
				delete(c.subs, id)
			}
		}
		c.subsMu.Unlock()
	}
}

// loadSnapshot restores the last persisted ticks. A missing or corrupt
// snapshot is not an error; the hub just starts cold.
func (h *Hub) loadSnapshot() {
	data, err := os.ReadFile(h.snapshotPath)
	if err != nil {
		return
	}

	var ticks map[string]Tick
	if err := msgpack.Unmarshal(data, &ticks); err != nil {
		h.log.Warn().Err(err).Msg("Discarding corrupt price snapshot")
		return
	}

	h.mu.Lock()
	h.ticks = ticks
	h.mu.Unlock()
	h.log.Info().Int("assets", len(ticks)).Msg("Restored price snapshot")
}

// saveSnapshot persists the latest ticks for the next startup.
func (h *Hub) saveSnapshot() {
	h.mu.RLock()
	ticks := make(map[string]Tick, len(h.ticks))
	for k, v := range h.ticks {
		ticks[k] = v
	}
	h.mu.RUnlock()

	if len(ticks) == 0 {
		return
	}

	data, err := msgpack.Marshal(ticks)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode price snapshot")
		return
	}

	if err := os.WriteFile(h.snapshotPath, data, 0644); err != nil {
		h.log.Error().Err(err).Msg("Failed to write price snapshot")
		return
	}
	h.log.Info().Int("assets", len(ticks)).Msg("Persisted price snapshot")
}

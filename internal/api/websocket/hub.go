package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/fortuna/gridiron/internal/publisher"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and fans league events out to
// them.
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan publisher.Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	totalConnections int64
	totalMessages    int64
	metricsMu        sync.Mutex

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan publisher.Event, 1000),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("✓ Hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case ev := <-h.broadcast:
			h.broadcastEvent(ev)
		}
	}
}

// Register adds a client to the hub. Once the hub has stopped the
// client's send channel is closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes a client from the hub. It is a no-op once the hub
// has stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for connected clients. It never blocks; when the
// buffer is full the event is dropped.
func (h *Hub) Publish(_ context.Context, ev publisher.Event) error {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn().Str("type", string(ev.Type)).Msg("broadcast buffer full, dropping event")
	}
	return nil
}

var _ publisher.Sink = (*Hub)(nil)

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()

	h.logger.Debug().Str("client_id", c.ID).Int("total", len(h.clients)).Msg("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		h.logger.Debug().Str("client_id", c.ID).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

func (h *Hub) broadcastEvent(ev publisher.Event) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := ServerMessage{Type: MessageTypeEvent, Payload: ev, Timestamp: time.Now().UTC()}

	sent, dropped := 0, 0
	for _, c := range clients {
		if !c.Wants(ev.LeagueID) {
			continue
		}
		if c.TrySend(message) {
			sent++
			continue
		}
		// Too slow to keep up.
		dropped++
		go h.Unregister(c)
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
	if dropped > 0 {
		h.logger.Warn().Int("dropped", dropped).Msg("disconnected slow clients")
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Metrics returns hub metrics
func (h *Hub) Metrics() map[string]interface{} {
	active := h.ClientCount()

	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return map[string]interface{}{
		"active_clients":     active,
		"total_connections":  h.totalConnections,
		"total_messages":     h.totalMessages,
		"broadcast_capacity": cap(h.broadcast),
		"broadcast_usage":    len(h.broadcast),
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info().Int("clients", len(h.clients)).Msg("shutting down hub")
	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
	close(h.done)
}

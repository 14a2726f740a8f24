package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// MessageType tags frames in both directions.
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeHeartbeat   MessageType = "heartbeat"
	MessageTypeEvent       MessageType = "event"
	MessageTypeError       MessageType = "error"
)

// ClientMessage is sent by a browser. Subscribe narrows the feed to the
// listed leagues; an empty list means every league.
type ClientMessage struct {
	Type      MessageType `json:"type"`
	LeagueIDs []string    `json:"league_ids,omitempty"`
}

// ServerMessage is pushed to a browser.
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	Send chan ServerMessage

	conn        *websocket.Conn
	hub         *Hub
	connectedAt time.Time
	logger      zerolog.Logger

	leagues   map[string]bool
	leaguesMu sync.RWMutex
}

// NewClient creates a new client instance
func NewClient(id string, conn *websocket.Conn, hub *Hub, logger zerolog.Logger) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan ServerMessage, sendBufferSize),
		conn:        conn,
		hub:         hub,
		connectedAt: time.Now(),
		logger:      logger.With().Str("client_id", id).Logger(),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		c.handleClientMessage(msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking. It reports false when the
// client's buffer is full.
func (c *Client) TrySend(msg ServerMessage) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Subscribe limits the feed to the given leagues.
func (c *Client) Subscribe(leagueIDs []string) {
	c.leaguesMu.Lock()
	defer c.leaguesMu.Unlock()
	if len(leagueIDs) == 0 {
		c.leagues = nil
		return
	}
	c.leagues = make(map[string]bool, len(leagueIDs))
	for _, id := range leagueIDs {
		c.leagues[id] = true
	}
}

// Wants reports whether events for the league should reach this client.
func (c *Client) Wants(leagueID string) bool {
	c.leaguesMu.RLock()
	defer c.leaguesMu.RUnlock()
	return c.leagues == nil || c.leagues[leagueID]
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.Subscribe(msg.LeagueIDs)
		c.logger.Debug().Strs("league_ids", msg.LeagueIDs).Msg("subscribed")
	case MessageTypeUnsubscribe:
		c.Subscribe(nil)
	case MessageTypeHeartbeat:
		c.TrySend(ServerMessage{
			Type:      MessageTypeHeartbeat,
			Payload:   map[string]interface{}{"client_id": c.ID, "connected_at": c.connectedAt},
			Timestamp: time.Now().UTC(),
		})
	default:
		c.TrySend(ServerMessage{
			Type:      MessageTypeError,
			Payload:   ErrorMessage{Code: "unknown_message_type", Message: fmt.Sprintf("unknown message type: %s", msg.Type)},
			Timestamp: time.Now().UTC(),
		})
	}
}

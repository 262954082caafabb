package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openfab-labs/acs-core/internal/infrastructure/config"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/reader"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// ChannelReaderUpdated carries reader status changes from the
	// telemetry ingestor.
	ChannelReaderUpdated = "reader.updated"

	// wsSendBufferSize bounds each client's outbound queue; a client that
	// falls further behind starts dropping events.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels for subscribe/unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware.
		return true
	},
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

// wsClient is one upgraded connection with its channel subscriptions.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}

	// identity propagated from the consumed WebSocket ticket.
	identity Identity
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// unregister removes the client. The send channel is closed only by the
// goroutine that actually removed the client from the map, so concurrent
// unregister and shutdown cannot double-close it.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// BroadcastReaderUpdate pushes a reader status change to subscribers of
// the reader channel. This is the telemetry ingestor's broadcast sink.
func (h *Hub) BroadcastReaderUpdate(rec *reader.Reader) {
	h.broadcast(ChannelReaderUpdated, rec)
}

// broadcast fans one event out to every client subscribed to the channel.
// The client list is snapshotted under the hub lock and released before
// any per-client locks are touched.
func (h *Hub) broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshalling broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.subscribed(channel) {
			c.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sent)
	}
}

// handleWebSocket upgrades the connection. Auth is the single-use ticket
// from POST /auth/ws-ticket, passed as a query parameter because browsers
// cannot attach headers to upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	ident, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		identity:      ident,
	}
	s.hub.register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

// readDeadline is how long a connection may stay silent before the read
// side gives up on it.
func readDeadline(cfg config.WebSocketConfig) time.Duration {
	return time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
}

// readPump consumes frames until the connection drops, dispatching each
// to handleMessage. Any inbound traffic extends the read deadline, so a
// chatty client survives even when its browser ignores protocol pings.
func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(readDeadline(cfg)))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline(cfg)))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(readDeadline(cfg)))
		c.handleMessage(message)
	}
}

// writePump drains the send queue and emits protocol pings. It owns all
// writes to the connection; nothing else may call WriteMessage.
func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel.
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one inbound frame.
func (c *wsClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(msg, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateSubscriptions applies a subscribe or unsubscribe frame and acks it.
func (c *wsClient) updateSubscriptions(msg WSMessage, subscribe bool) {
	var sub WSSubscribePayload
	if err := decodePayload(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if subscribe {
		c.hub.logger.Info("websocket client subscribed",
			"subject", c.identity.Subject, "channels", sub.Channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})
		return
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// decodePayload re-marshals the loosely-typed payload into a concrete type.
func decodePayload(payload any, dst any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// trySend queues data for the client, dropping it when the buffer is full
// and absorbing the panic when the client disconnected mid-broadcast.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Send on closed channel during disconnect
	}()

	select {
	case c.send <- data:
	default:
		// Slow client; drop the event.
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// reply queues a response frame. Routed through trySend so replies during
// shutdown are dropped instead of panicking.
func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError queues an error frame.
func (c *wsClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}

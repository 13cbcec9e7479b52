package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spooky-finn/orderbook-gateway/domain"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Subscriber is the registry side of the endpoint.
type Subscriber interface {
	Subscribe(ctx context.Context, subscriberID string, input string) (string, error)
	Unsubscribe(subscriberID string) bool
}

// Endpoint upgrades /ws connections and turns their requests into registry
// subscriptions and hub group membership.
type Endpoint struct {
	registry Subscriber
	hub      *Hub
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

func NewEndpoint(registry Subscriber, hub *Hub) *Endpoint {
	return &Endpoint{
		registry: registry,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	e.register(c)
	logger.Debug().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writePump()
	e.readPump(r.Context(), c)
}

// CloseAll drops every open connection.
func (e *Endpoint) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.clients {
		_ = c.conn.Close()
	}
}

func (e *Endpoint) ClientsCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

func (e *Endpoint) register(c *client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[c.id] = c
}

func (e *Endpoint) unregister(c *client) {
	e.mu.Lock()
	delete(e.clients, c.id)
	e.mu.Unlock()

	e.hub.Leave(c.id)
	e.registry.Unsubscribe(c.id)
	close(c.done)
	_ = c.conn.Close()
	logger.Debug().Str("client", c.id).Msg("client disconnected")
}

func (e *Endpoint) readPump(ctx context.Context, c *client) {
	defer e.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Str("client", c.id).Msg("unexpected close")
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.reply(WSResponse{Type: TypeError, Error: "invalid JSON"})
			continue
		}
		e.handle(ctx, c, req)
	}
}

func (e *Endpoint) handle(ctx context.Context, c *client, req WSRequest) {
	switch req.Action {
	case ActionSubscribe:
		symbol, err := e.registry.Subscribe(ctx, c.id, req.Symbol)
		if err != nil {
			resp := WSResponse{Type: ActionSubscribe, ID: req.ID, Error: err.Error()}
			if !errors.Is(err, domain.ErrInstrumentNotFound) {
				logger.Error().Err(err).Str("client", c.id).Str("input", req.Symbol).Msg("subscribe failed")
			}
			c.reply(resp)
			return
		}
		c.reply(WSResponse{Type: ActionSubscribe, ID: req.ID, OK: true, Symbol: symbol})
		e.hub.Join(symbol, c)

	case ActionUnsubscribe:
		e.hub.Leave(c.id)
		ok := e.registry.Unsubscribe(c.id)
		c.reply(WSResponse{Type: ActionUnsubscribe, ID: req.ID, OK: ok})

	default:
		c.reply(WSResponse{Type: TypeError, ID: req.ID, Error: "unknown action: " + req.Action})
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// done is closed by the reader on exit, stopped by the writer.
	done    chan struct{}
	stopped chan struct{}
}

func (c *client) ID() string {
	return c.id
}

// Send queues a book update; it drops the update when the client lags.
func (c *client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) reply(resp WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	case <-c.stopped:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.stopped)
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

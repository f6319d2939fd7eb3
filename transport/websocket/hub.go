package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rocketscienceinc/atrapa-milio/internal/event"
	"github.com/rocketscienceinc/atrapa-milio/internal/session"
)

const sendBufferSize = 64

// client is one live socket. Everything written to it goes through send and is
// flushed by its own write loop until done is closed.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *client {
	return &client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
	})
}

// Hub fans messages out to room groups, to the hosts of a room, or to a single
// connection. A connection belongs to at most one room at a time.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	clients  map[string]*client
	rooms    map[string]map[string]struct{}
	hosts    map[string]map[string]struct{}
	memberOf map[string]string
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger.With("component", "hub"),

		clients:  make(map[string]*client),
		rooms:    make(map[string]map[string]struct{}),
		hosts:    make(map[string]map[string]struct{}),
		memberOf: make(map[string]string),
	}
}

func (that *Hub) Register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c.id] = c
}

// Unregister - drops the connection from every group and closes its send queue.
func (that *Hub) Unregister(connID string) {
	that.mu.Lock()
	c, ok := that.clients[connID]
	delete(that.clients, connID)
	that.leave(connID)
	that.mu.Unlock()

	if ok {
		c.close()
	}
}

func (that *Hub) Subscribe(connID, roomCode string, role session.Role) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.leave(connID)

	join(that.rooms, roomCode, connID)
	if role == session.RoleHost {
		join(that.hosts, roomCode, connID)
	}
	that.memberOf[connID] = roomCode
}

func (that *Hub) Unsubscribe(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.leave(connID)
}

// leave must be called with mu held.
func (that *Hub) leave(connID string) {
	roomCode, ok := that.memberOf[connID]
	if !ok {
		return
	}

	delete(that.memberOf, connID)
	part(that.rooms, roomCode, connID)
	part(that.hosts, roomCode, connID)
}

func join(groups map[string]map[string]struct{}, key, connID string) {
	group, ok := groups[key]
	if !ok {
		group = make(map[string]struct{})
		groups[key] = group
	}
	group[connID] = struct{}{}
}

func part(groups map[string]map[string]struct{}, key, connID string) {
	group, ok := groups[key]
	if !ok {
		return
	}

	delete(group, connID)
	if len(group) == 0 {
		delete(groups, key)
	}
}

func (that *Hub) BroadcastToRoom(roomCode string, message event.Envelope) {
	that.deliver(message, that.members(that.rooms, roomCode))
}

func (that *Hub) SendToHosts(roomCode string, message event.Envelope) {
	that.deliver(message, that.members(that.hosts, roomCode))
}

func (that *Hub) SendToConnection(connID string, message event.Envelope) {
	that.mu.RLock()
	c, ok := that.clients[connID]
	that.mu.RUnlock()

	if !ok {
		that.logger.Debug("connection is gone, message dropped", "connID", connID, "action", message.Action)
		return
	}

	that.deliver(message, []*client{c})
}

func (that *Hub) members(groups map[string]map[string]struct{}, key string) []*client {
	that.mu.RLock()
	defer that.mu.RUnlock()

	group := groups[key]
	clients := make([]*client, 0, len(group))
	for connID := range group {
		if c, ok := that.clients[connID]; ok {
			clients = append(clients, c)
		}
	}
	return clients
}

func (that *Hub) deliver(message event.Envelope, clients []*client) {
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", message.Action, "error", err)
		return
	}

	for _, c := range clients {
		if !that.enqueue(c, data) {
			that.logger.Warn("send queue full, dropping connection", "connID", c.id)
			that.Unregister(c.id)
		}
	}
}

func (that *Hub) enqueue(c *client, data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Members - number of connections subscribed to a room.
func (that *Hub) Members(roomCode string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms[roomCode])
}

package hub

import (
	"sync"

	"fleetd/pkg/logger"

	"github.com/gorilla/websocket"
)

// Hub is the connection registry. It tracks every live connection, maps
// topic names to their members and fans messages out to topic members or
// the global audience. All map access is serialized by a single mutex;
// message delivery never blocks on a slow consumer (a full outbound queue
// drops the connection instead).
type Hub struct {
	mu         sync.Mutex
	conns      map[*Conn]struct{}
	topics     map[string]map[*Conn]struct{}
	membership map[*Conn]map[string]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		conns:      make(map[*Conn]struct{}),
		topics:     make(map[string]map[*Conn]struct{}),
		membership: make(map[*Conn]map[string]struct{}),
	}
}

// NewConn wraps an upgraded websocket connection and starts its write pump.
func NewConn(ws *websocket.Conn, workerID string) *Conn {
	c := &Conn{
		WorkerID: workerID,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

// Register adds a connection to the registry.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Unregister releases all topic memberships and shuts down the connection's
// write pump. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	for topic := range h.membership[c] {
		delete(h.topics[topic], c)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.membership, c)
	c.closeSend()
}

// Join subscribes a connection to a topic. A connection may hold any number
// of memberships; they are all released on unregister.
func (h *Hub) Join(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Conn]struct{})
	}
	h.topics[topic][c] = struct{}{}
	if h.membership[c] == nil {
		h.membership[c] = make(map[string]struct{})
	}
	h.membership[c][topic] = struct{}{}
}

// Send delivers a message to every member of a topic.
func (h *Hub) Send(topic string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(h.topics[topic], msg)
}

// Broadcast delivers a message to every connection.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(h.conns, msg)
}

// HasMembers reports whether a topic has at least one live member.
func (h *Hub) HasMembers(topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic]) > 0
}

func (h *Hub) deliver(targets map[*Conn]struct{}, msg []byte) {
	var slow []*Conn
	for c := range targets {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		logger.Warnf("dropping slow connection (worker_id=%q)", c.WorkerID)
		h.unregisterLocked(c)
	}
}

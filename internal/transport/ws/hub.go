// Package ws is the WebSocket gateway: it owns live connections, tracks
// room groups and delivers outbound frames.
package ws

import (
	"log/slog"
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
)

// Observer is told about connection lifecycle and dropped frames
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameDropped()
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) FrameDropped()     {}

// client is the hub's view of a connection
type client interface {
	ID() model.ConnID
	// Enqueue hands a frame to the connection without blocking.
	// It returns false if the connection's buffer is full.
	Enqueue(frame []byte) bool
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Hub tracks connected clients and room groups. All sends are non-blocking:
// a client whose buffer is full loses the frame and is disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnID]client
	groups  map[model.RoomID]map[model.ConnID]struct{}

	observer Observer
	logger   *slog.Logger
}

// NewHub creates an empty Hub. A nil observer is allowed.
func NewHub(observer Observer, logger *slog.Logger) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Hub{
		clients:  make(map[model.ConnID]client),
		groups:   make(map[model.RoomID]map[model.ConnID]struct{}),
		observer: observer,
		logger:   logger.With(slog.String("component", "ws_hub")),
	}
}

// Register adds a client
func (h *Hub) Register(c client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.observer.ConnectionOpened()
	h.logger.Info("client connected",
		slog.String("conn_id", string(c.ID())),
		slog.Int("clients", count),
	)
}

// Unregister removes a client from the hub and from every group.
// It reports whether the client was registered.
func (h *Hub) Unregister(id model.ConnID) bool {
	h.mu.Lock()
	_, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		for room, members := range h.groups {
			delete(members, id)
			if len(members) == 0 {
				delete(h.groups, room)
			}
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return false
	}
	h.observer.ConnectionClosed()
	h.logger.Info("client disconnected",
		slog.String("conn_id", string(id)),
		slog.Int("clients", count),
	)
	return true
}

// CloseAll closes every registered client
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close()
	}
}

// Stats returns the number of non-empty groups and connected clients
func (h *Hub) Stats() (groups, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups), len(h.clients)
}

// SendFrame delivers an encoded frame to one connection
func (h *Hub) SendFrame(conn model.ConnID, frame []byte) {
	h.mu.RLock()
	c, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(c, frame)
}

// BroadcastFrame delivers an encoded frame to every connection
func (h *Hub) BroadcastFrame(frame []byte) {
	h.mu.RLock()
	targets := make([]client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, frame)
	}
}

// RoomFrame delivers an encoded frame to the connections in a room's group
func (h *Hub) RoomFrame(room model.RoomID, frame []byte) {
	h.mu.RLock()
	members := h.groups[room]
	targets := make([]client, 0, len(members))
	for id := range members {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, frame)
	}
}

func (h *Hub) deliver(c client, frame []byte) {
	if c.Enqueue(frame) {
		return
	}
	h.observer.FrameDropped()
	h.logger.Warn("send buffer full, dropping client", slog.String("conn_id", string(c.ID())))
	go c.Close()
}

// JoinGroup subscribes a connection to a room's group. Unknown
// connections are ignored.
func (h *Hub) JoinGroup(conn model.ConnID, room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	members, ok := h.groups[room]
	if !ok {
		members = make(map[model.ConnID]struct{})
		h.groups[room] = members
	}
	members[conn] = struct{}{}
}

// LeaveGroup unsubscribes a connection from a room's group
func (h *Hub) LeaveGroup(conn model.ConnID, room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[room]
	if !ok {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

// DropGroup discards a room's group
func (h *Hub) DropGroup(room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, room)
}

// InGroup reports whether a connection is subscribed to a room
func (h *Hub) InGroup(conn model.ConnID, room model.RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[room][conn]
	return ok
}

// SendTo encodes and delivers a message to one connection
func (h *Hub) SendTo(conn model.ConnID, kind model.OutboundKind, payload any) {
	if frame, ok := h.encode(kind, payload); ok {
		h.SendFrame(conn, frame)
	}
}

// NotifyGlobal encodes and delivers a message to every connection
func (h *Hub) NotifyGlobal(kind model.OutboundKind, payload any) {
	if frame, ok := h.encode(kind, payload); ok {
		h.BroadcastFrame(frame)
	}
}

// NotifyRoom encodes and delivers a message to a room's group
func (h *Hub) NotifyRoom(room model.RoomID, kind model.OutboundKind, payload any) {
	if frame, ok := h.encode(kind, payload); ok {
		h.RoomFrame(room, frame)
	}
}

func (h *Hub) encode(kind model.OutboundKind, payload any) ([]byte, bool) {
	frame, err := protocol.Encode(kind, payload)
	if err != nil {
		h.logger.Error("failed to encode frame",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return frame, true
}

package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/web/components"
)

// SSE event names the dashboard swaps on
const (
	EventUsers = "users"
	EventRooms = "rooms"
)

// Feed renders global snapshots into dashboard fragments and pushes them
// through the hub. Only users:update and rooms:update are of interest; every
// other notification is ignored.
//
// The latest listings are kept so a node without registries of its own can
// still serve the dashboard and health counts.
type Feed struct {
	hub    *Hub
	logger *slog.Logger

	mu    sync.RWMutex
	users []protocol.User
	rooms []protocol.Room
}

// NewFeed creates a Feed publishing to hub
func NewFeed(hub *Hub, logger *slog.Logger) *Feed {
	return &Feed{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse_feed")),
	}
}

// NotifyGlobal renders the snapshot and broadcasts it to dashboard viewers
func (f *Feed) NotifyGlobal(kind model.OutboundKind, payload any) {
	switch p := payload.(type) {
	case []protocol.User:
		if kind == model.KindUsersUpdate {
			f.publishUsers(p)
		}
	case []protocol.Room:
		if kind == model.KindRoomsUpdate {
			f.publishRooms(p)
		}
	}
}

// BroadcastFrame is NotifyGlobal for a frame relayed already encoded
func (f *Feed) BroadcastFrame(frame []byte) {
	var msg struct {
		Event model.OutboundKind `json:"event"`
		Data  json.RawMessage    `json:"data"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		f.logger.Warn("invalid relayed frame", slog.String("error", err.Error()))
		return
	}

	var err error
	switch msg.Event {
	case model.KindUsersUpdate:
		var users []protocol.User
		if err = json.Unmarshal(msg.Data, &users); err == nil {
			f.publishUsers(users)
		}
	case model.KindRoomsUpdate:
		var rooms []protocol.Room
		if err = json.Unmarshal(msg.Data, &rooms); err == nil {
			f.publishRooms(rooms)
		}
	}
	if err != nil {
		f.logger.Warn("invalid relayed snapshot",
			slog.String("event", string(msg.Event)),
			slog.String("error", err.Error()))
	}
}

// Snapshot returns the most recent user and room listings seen
func (f *Feed) Snapshot(context.Context) ([]protocol.User, []protocol.Room) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.users), slices.Clone(f.rooms)
}

// UserCount returns the size of the latest user listing
func (f *Feed) UserCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users)
}

// RoomCount returns the size of the latest room listing
func (f *Feed) RoomCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

func (f *Feed) publishUsers(users []protocol.User) {
	f.mu.Lock()
	f.users = slices.Clone(users)
	f.mu.Unlock()

	var buf bytes.Buffer
	if err := components.UserTable(users).Render(context.Background(), &buf); err != nil {
		f.renderFailed(EventUsers, err)
		return
	}
	f.hub.BroadcastEvent(EventUsers, buf.String())
}

func (f *Feed) publishRooms(rooms []protocol.Room) {
	f.mu.Lock()
	f.rooms = slices.Clone(rooms)
	f.mu.Unlock()

	var buf bytes.Buffer
	if err := components.RoomTable(rooms).Render(context.Background(), &buf); err != nil {
		f.renderFailed(EventRooms, err)
		return
	}
	f.hub.BroadcastEvent(EventRooms, buf.String())
}

func (f *Feed) renderFailed(event string, err error) {
	f.logger.Error("failed to render dashboard fragment",
		slog.String("event", event),
		slog.String("error", err.Error()))
}

func (f *Feed) SendTo(model.ConnID, model.OutboundKind, any)     {}
func (f *Feed) NotifyRoom(model.RoomID, model.OutboundKind, any) {}
func (f *Feed) SendFrame(model.ConnID, []byte)                   {}
func (f *Feed) RoomFrame(model.RoomID, []byte)                   {}
func (f *Feed) JoinGroup(model.ConnID, model.RoomID)             {}
func (f *Feed) LeaveGroup(model.ConnID, model.RoomID)            {}
func (f *Feed) DropGroup(model.RoomID)                           {}

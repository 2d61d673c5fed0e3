// Package broadcast pushes registry snapshots to subscribers through a
// transport-provided Notifier.
package broadcast

import (
	"context"
	"iter"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
)

// Notifier is implemented by the transport. All methods are fire-and-forget:
// a subscriber that cannot be reached is skipped without affecting the rest.
type Notifier interface {
	SendTo(conn model.ConnID, kind model.OutboundKind, payload any)
	NotifyGlobal(kind model.OutboundKind, payload any)
	NotifyRoom(room model.RoomID, kind model.OutboundKind, payload any)
	JoinGroup(conn model.ConnID, room model.RoomID)
	LeaveGroup(conn model.ConnID, room model.RoomID)
	DropGroup(room model.RoomID)
}

// UserSource lists online users
type UserSource interface {
	All(ctx context.Context) iter.Seq[model.User]
}

// RoomSource lists open rooms
type RoomSource interface {
	All(ctx context.Context) iter.Seq[model.Room]
}

// Dispatcher builds snapshot payloads and hands them to the Notifier
type Dispatcher struct {
	notifier Notifier
	users    UserSource
	rooms    RoomSource
	logger   *slog.Logger
}

// New creates a new Dispatcher
func New(notifier Notifier, users UserSource, rooms RoomSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		users:    users,
		rooms:    rooms,
		logger:   logger.With(slog.String("component", "broadcast")),
	}
}

// SendTo delivers a message to one connection
func (d *Dispatcher) SendTo(conn model.ConnID, kind model.OutboundKind, payload any) {
	d.notifier.SendTo(conn, kind, payload)
}

// SendError reports a failure to the connection that caused it
func (d *Dispatcher) SendError(conn model.ConnID, message, code string) {
	d.notifier.SendTo(conn, model.KindError, protocol.Error{Message: message, Code: code})
}

// UsersChanged sends the full user listing to everyone
func (d *Dispatcher) UsersChanged(ctx context.Context) {
	d.notifier.NotifyGlobal(model.KindUsersUpdate, d.UserSnapshot(ctx))
}

// RoomsChanged sends the full room listing to everyone
func (d *Dispatcher) RoomsChanged(ctx context.Context) {
	d.notifier.NotifyGlobal(model.KindRoomsUpdate, d.RoomSnapshot(ctx))
}

// RoomChanged sends the room's new state to its subscribers
func (d *Dispatcher) RoomChanged(room model.Room) {
	d.logger.Debug("room update",
		slog.String("room_id", string(room.ID)),
		slog.Int("players", len(room.Players)),
	)
	d.notifier.NotifyRoom(room.ID, model.KindRoomUpdate, protocol.NewRoom(room))
}

// UserSnapshot returns the current user listing in wire form
func (d *Dispatcher) UserSnapshot(ctx context.Context) []protocol.User {
	return protocol.NewUsers(d.users.All(ctx))
}

// RoomSnapshot returns the current room listing in wire form
func (d *Dispatcher) RoomSnapshot(ctx context.Context) []protocol.Room {
	return protocol.NewRooms(d.rooms.All(ctx))
}

// Subscribe adds the connection to the room's group
func (d *Dispatcher) Subscribe(conn model.ConnID, room model.RoomID) {
	d.notifier.JoinGroup(conn, room)
}

// Unsubscribe removes the connection from the room's group
func (d *Dispatcher) Unsubscribe(conn model.ConnID, room model.RoomID) {
	d.notifier.LeaveGroup(conn, room)
}

// CloseRoom discards the group of a deleted room
func (d *Dispatcher) CloseRoom(room model.RoomID) {
	d.notifier.DropGroup(room)
}

// Package coordinator serializes inbound events against the presence and
// room registries and fans out the resulting notifications.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/services/broadcast"
	"github.com/mcoot/lobbysync/internal/services/presence"
	"github.com/mcoot/lobbysync/internal/services/rooms"
	"github.com/mcoot/lobbysync/internal/session"
)

// Observer is told about every handled event
type Observer interface {
	EventHandled(event string, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) EventHandled(string, string, time.Duration) {}

// OutcomeOK is the outcome reported for events that succeeded
const OutcomeOK = "ok"

// Coordinator owns all registry mutation. Every event runs to completion
// under one mutex; notifications are enqueued while it is held.
type Coordinator struct {
	mu sync.Mutex

	sessions *session.Map
	users    *presence.Service
	rooms    *rooms.Controller
	out      *broadcast.Dispatcher
	observer Observer
	logger   *slog.Logger
}

// New creates a Coordinator. A nil observer is allowed.
func New(
	sessions *session.Map,
	users *presence.Service,
	rooms *rooms.Controller,
	out *broadcast.Dispatcher,
	observer Observer,
	logger *slog.Logger,
) *Coordinator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Coordinator{
		sessions: sessions,
		users:    users,
		rooms:    rooms,
		out:      out,
		observer: observer,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// Snapshot returns the user and room listings in wire form. It takes the
// gate so readers outside the event flow never observe a half-applied event.
func (c *Coordinator) Snapshot(ctx context.Context) ([]protocol.User, []protocol.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.UserSnapshot(ctx), c.out.RoomSnapshot(ctx)
}

// Resync rebroadcasts the user and room listings to every subscriber
func (c *Coordinator) Resync(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.UsersChanged(ctx)
	c.out.RoomsChanged(ctx)
}

// Handle processes one event from conn. Failures are reported to conn as an
// error message (except for Disconnect, whose connection is gone) and also
// returned for logging.
func (c *Coordinator) Handle(ctx context.Context, conn model.ConnID, event model.Event) (err error) {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("event", event.Name()),
				slog.String("conn_id", string(conn)),
			)
			err = fmt.Errorf("handle %s: panic: %v", event.Name(), r)
			if _, gone := event.(model.Disconnect); !gone {
				c.reportError(conn, err)
			}
		}
		c.observer.EventHandled(event.Name(), outcome(err), time.Since(start))
	}()

	switch e := event.(type) {
	case model.Login:
		err = c.login(ctx, conn, e)
	case model.Logout:
		err = c.logout(ctx, conn)
	case model.CreateRoom:
		err = c.createRoom(ctx, conn, e)
	case model.JoinRoom:
		err = c.joinRoom(ctx, conn, e)
	case model.LeaveRoom:
		err = c.leaveRoom(ctx, conn, e)
	case model.Disconnect:
		err = c.disconnect(ctx, conn)
		if err != nil {
			c.logger.Error("disconnect cleanup failed",
				slog.String("conn_id", string(conn)),
				slog.String("error", err.Error()),
			)
		}
		return err
	default:
		err = fmt.Errorf("%w: %T", model.ErrUnknownEvent, event)
	}

	if err != nil {
		c.reportError(conn, err)
	}
	return err
}

// Reject reports a frame that could not be decoded into an event
func (c *Coordinator) Reject(conn model.ConnID, err error) {
	c.logger.Debug("rejected frame",
		slog.String("conn_id", string(conn)),
		slog.String("error", err.Error()),
	)
	c.reportError(conn, err)
	c.observer.EventHandled("invalid", outcome(err), 0)
}

func (c *Coordinator) reportError(conn model.ConnID, err error) {
	we := toWireError(err)
	if we.code == CodeInternalError {
		c.logger.Error("event failed",
			slog.String("conn_id", string(conn)),
			slog.String("error", err.Error()),
		)
	}
	c.out.SendError(conn, we.message, we.code)
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return toWireError(err).code
}

func (c *Coordinator) login(ctx context.Context, conn model.ConnID, e model.Login) error {
	if e.UserID == "" || e.DisplayName == "" {
		return model.ErrMissingFields
	}

	user, err := c.users.Upsert(ctx, e.UserID, e.DisplayName, conn)
	if err != nil {
		return err
	}
	c.sessions.Bind(conn, user.ID)

	c.out.UsersChanged(ctx)
	c.out.RoomsChanged(ctx)

	c.logger.Info("user logged in",
		slog.String("user_id", string(user.ID)),
		slog.String("username", user.DisplayName),
		slog.String("conn_id", string(conn)),
	)

	c.out.SendTo(conn, model.KindLoginSuccess, protocol.LoginSuccess{
		User:        protocol.NewUser(user),
		OnlineUsers: c.out.UserSnapshot(ctx),
		ActiveRooms: c.out.RoomSnapshot(ctx),
	})
	return nil
}

func (c *Coordinator) logout(ctx context.Context, conn model.ConnID) error {
	userID, ok := c.sessions.Resolve(conn)
	if !ok {
		return nil
	}
	c.sessions.Unbind(conn)

	if err := c.removeUser(ctx, conn, userID); err != nil {
		return err
	}
	c.logger.Info("user logged out", slog.String("user_id", string(userID)))
	return nil
}

func (c *Coordinator) disconnect(ctx context.Context, conn model.ConnID) error {
	userID, ok := c.sessions.Resolve(conn)
	if !ok {
		return nil
	}
	c.sessions.Unbind(conn)

	if err := c.removeUser(ctx, conn, userID); err != nil {
		return err
	}
	c.logger.Info("user disconnected",
		slog.String("user_id", string(userID)),
		slog.String("conn_id", string(conn)),
	)
	return nil
}

// removeUser deletes the user and takes them out of every room. The global
// listings are re-sent even if room cleanup failed part way.
func (c *Coordinator) removeUser(ctx context.Context, conn model.ConnID, userID model.UserID) error {
	if err := c.users.Remove(ctx, userID); err != nil {
		return err
	}

	results, err := c.rooms.RemoveUserEverywhere(ctx, userID)
	for _, res := range results {
		if res.Deleted {
			c.out.CloseRoom(res.Room.ID)
			continue
		}
		c.out.Unsubscribe(conn, res.Room.ID)
		c.out.RoomChanged(res.Room)
	}

	c.out.UsersChanged(ctx)
	c.out.RoomsChanged(ctx)
	return err
}

func (c *Coordinator) createRoom(ctx context.Context, conn model.ConnID, e model.CreateRoom) error {
	room, err := c.rooms.Create(ctx, e.RoomName, e.HostID, e.MaxPlayers)
	if err != nil {
		return err
	}

	c.out.Subscribe(conn, room.ID)
	c.out.SendTo(conn, model.KindRoomCreated, protocol.NewRoom(room))
	c.out.RoomsChanged(ctx)
	return nil
}

func (c *Coordinator) joinRoom(ctx context.Context, conn model.ConnID, e model.JoinRoom) error {
	room, outcome, err := c.rooms.Join(ctx, e.RoomID, e.UserID)
	if err != nil {
		return err
	}

	c.out.Subscribe(conn, room.ID)
	c.out.SendTo(conn, model.KindRoomJoined, protocol.NewRoom(room))
	if outcome == rooms.AlreadyMember {
		return nil
	}

	c.out.RoomChanged(room)
	c.out.RoomsChanged(ctx)

	c.logger.Info("user joined room",
		slog.String("user_id", string(e.UserID)),
		slog.String("room_id", string(room.ID)),
	)
	return nil
}

func (c *Coordinator) leaveRoom(ctx context.Context, conn model.ConnID, e model.LeaveRoom) error {
	res, err := c.rooms.Leave(ctx, e.RoomID, e.UserID)
	if err != nil {
		return err
	}

	switch {
	case res.Deleted:
		c.out.CloseRoom(res.Room.ID)
		c.out.RoomsChanged(ctx)
		return nil
	case res.Changed:
		c.out.Unsubscribe(conn, res.Room.ID)
		c.out.RoomChanged(res.Room)
		c.out.RoomsChanged(ctx)
		c.logger.Info("user left room",
			slog.String("user_id", string(e.UserID)),
			slog.String("room_id", string(res.Room.ID)),
		)
	default:
		c.out.Unsubscribe(conn, res.Room.ID)
	}

	c.out.SendTo(conn, model.KindRoomLeft, protocol.RoomLeft{RoomID: string(res.Room.ID)})
	return nil
}

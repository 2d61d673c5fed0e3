// Package rooms is the registry of open rooms and their membership.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/dependencies/random"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

const (
	// RoomIDSuffixLength is the length of the random part of a room ID
	RoomIDSuffixLength = 6
	// RoomIDAlphabet is the characters used in the random part of a room ID
	RoomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// MaxRoomIDAttempts bounds how many IDs Create draws before giving up
	MaxRoomIDAttempts = 5
)

// ErrRoomIDExhausted is returned when every drawn room ID was taken
var ErrRoomIDExhausted = errors.New("no free room id")

// UserLookup resolves logged-in users
type UserLookup interface {
	Get(ctx context.Context, id model.UserID) (model.User, error)
}

// JoinOutcome describes what a successful Join did
type JoinOutcome int

const (
	// Joined means the user was appended to the room
	Joined JoinOutcome = iota
	// AlreadyMember means the user was in the room and nothing changed
	AlreadyMember
)

// LeaveResult describes the effect of removing a user from one room
type LeaveResult struct {
	// Room is the room after the removal. For a deleted room it holds the
	// last state before deletion, with no players.
	Room model.Room
	// Changed is false when the user was not a member
	Changed bool
	// Deleted is true when the room became empty and was removed
	Deleted bool
}

// Controller manages room creation and membership
type Controller struct {
	storage storage.Storage
	users   UserLookup
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new rooms Controller
func NewController(
	storage storage.Storage,
	users UserLookup,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: storage,
		users:   users,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "rooms")),
	}
}

// Create opens a room with the host as its only member.
// A non-positive maxPlayers selects model.DefaultMaxPlayers.
func (c *Controller) Create(ctx context.Context, name string, hostID model.UserID, maxPlayers int) (model.Room, error) {
	host, err := c.users.Get(ctx, hostID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.Room{}, model.ErrHostNotFound
		}
		return model.Room{}, err
	}

	if maxPlayers <= 0 {
		maxPlayers = model.DefaultMaxPlayers
	}

	now := c.clock.Now()

	id, err := c.newRoomID(ctx, now.UnixMilli())
	if err != nil {
		return model.Room{}, err
	}

	room := &model.Room{
		ID:           id,
		Name:         name,
		HostID:       host.ID,
		Players:      []model.Player{model.NewPlayer(host)},
		Status:       model.RoomStatusWaiting,
		MaxPlayers:   maxPlayers,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return model.Room{}, fmt.Errorf("save room %s: %w", id, err)
	}

	c.logger.Info("room created",
		slog.String("room_id", string(id)),
		slog.String("name", name),
		slog.String("host_id", string(host.ID)),
	)
	return room.Clone(), nil
}

func (c *Controller) newRoomID(ctx context.Context, millis int64) (model.RoomID, error) {
	for range MaxRoomIDAttempts {
		id := model.RoomID(fmt.Sprintf("room_%d_%s",
			millis, c.random.String(RoomIDSuffixLength, RoomIDAlphabet)))
		exists, err := c.storage.RoomExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		c.logger.Warn("room id collision, regenerating", slog.String("room_id", string(id)))
	}
	return "", fmt.Errorf("%w after %d attempts", ErrRoomIDExhausted, MaxRoomIDAttempts)
}

// Get returns a snapshot of the room, or model.ErrRoomNotFound
func (c *Controller) Get(ctx context.Context, id model.RoomID) (model.Room, error) {
	room, err := c.storage.GetRoom(ctx, id)
	if err != nil {
		return model.Room{}, err
	}
	return room.Clone(), nil
}

// Join adds the user to the room. Checks run in a fixed order: user, room,
// capacity, status, existing membership. A user who is already a member
// gets the unchanged room back with AlreadyMember.
func (c *Controller) Join(ctx context.Context, roomID model.RoomID, userID model.UserID) (model.Room, JoinOutcome, error) {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		return model.Room{}, Joined, err
	}

	room, err := c.storage.GetRoom(ctx, roomID)
	if err != nil {
		return model.Room{}, Joined, err
	}

	if room.IsFull() {
		return model.Room{}, Joined, model.ErrRoomFull
	}
	if room.Status == model.RoomStatusPlaying {
		return model.Room{}, Joined, model.ErrRoomInGame
	}
	if room.HasMember(userID) {
		return room.Clone(), AlreadyMember, nil
	}

	room.Players = append(room.Players, model.NewPlayer(user))
	room.LastActiveAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return model.Room{}, Joined, fmt.Errorf("save room %s: %w", roomID, err)
	}
	return room.Clone(), Joined, nil
}

// Leave removes the user from the room. Leaving a room one is not in
// changes nothing. If the room empties it is deleted; if the host left,
// the earliest-joined remaining member becomes host.
func (c *Controller) Leave(ctx context.Context, roomID model.RoomID, userID model.UserID) (LeaveResult, error) {
	room, err := c.storage.GetRoom(ctx, roomID)
	if err != nil {
		return LeaveResult{}, err
	}
	return c.removeMember(ctx, room, userID)
}

// RemoveUserEverywhere applies Leave to every room containing the user,
// in room creation order, and returns one result per affected room.
func (c *Controller) RemoveUserEverywhere(ctx context.Context, userID model.UserID) ([]LeaveResult, error) {
	snapshot, err := c.storage.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var results []LeaveResult
	for _, r := range snapshot {
		if !r.HasMember(userID) {
			continue
		}
		room, err := c.storage.GetRoom(ctx, r.ID)
		if err != nil {
			return results, err
		}
		result, err := c.removeMember(ctx, room, userID)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *Controller) removeMember(ctx context.Context, room *model.Room, userID model.UserID) (LeaveResult, error) {
	if !room.RemoveMember(userID) {
		return LeaveResult{Room: room.Clone()}, nil
	}

	if len(room.Players) == 0 {
		if err := c.storage.DeleteRoom(ctx, room.ID); err != nil {
			return LeaveResult{}, fmt.Errorf("delete room %s: %w", room.ID, err)
		}
		c.logger.Info("room deleted", slog.String("room_id", string(room.ID)))
		return LeaveResult{Room: room.Clone(), Changed: true, Deleted: true}, nil
	}

	if room.HostID == userID {
		room.HostID = room.Players[0].ID
		c.logger.Debug("host reassigned",
			slog.String("room_id", string(room.ID)),
			slog.String("host_id", string(room.HostID)),
		)
	}
	room.LastActiveAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return LeaveResult{}, fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return LeaveResult{Room: room.Clone(), Changed: true}, nil
}

// All yields every open room in creation order. Each range over the
// returned sequence reads a fresh snapshot.
func (c *Controller) All(ctx context.Context) iter.Seq[model.Room] {
	return func(yield func(model.Room) bool) {
		rooms, err := c.storage.ListRooms(ctx)
		if err != nil {
			c.logger.Error("failed to list rooms", slog.String("error", err.Error()))
			return
		}
		for _, r := range rooms {
			if !yield(r) {
				return
			}
		}
	}
}

// Count returns the number of open rooms
func (c *Controller) Count(ctx context.Context) int {
	n, err := c.storage.RoomCount(ctx)
	if err != nil {
		c.logger.Error("failed to count rooms", slog.String("error", err.Error()))
		return 0
	}
	return n
}

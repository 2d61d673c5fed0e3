package storage

import (
	"context"

	"github.com/mcoot/lobbysync/internal/model"
)

// Storage defines the interface for the presence and room registries' backing store.
// Get returns the live record; List returns value snapshots in insertion order.
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	DeleteUser(ctx context.Context, id model.UserID) error
	ListUsers(ctx context.Context) ([]model.User, error)
	UserCount(ctx context.Context) (int, error)

	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomExists(ctx context.Context, id model.RoomID) (bool, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	RoomCount(ctx context.Context) (int, error)
}

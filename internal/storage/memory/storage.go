package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Each record kind keeps an order slice next to its map so listings come
// back in first-insertion order; saving an existing key keeps its position.
type Storage struct {
	mu sync.RWMutex

	users     map[model.UserID]*model.User
	userOrder []model.UserID
	rooms     map[model.RoomID]*model.Room
	roomOrder []model.RoomID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users: make(map[model.UserID]*model.User),
		rooms: make(map[model.RoomID]*model.Room),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		s.userOrder = append(s.userOrder, user.ID)
	}
	s.users[user.ID] = user
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return nil
	}
	delete(s.users, id)
	s.userOrder = slices.DeleteFunc(s.userOrder, func(u model.UserID) bool { return u == id })
	return nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		result = append(result, *s.users[id])
	}
	return result, nil
}

func (s *Storage) UserCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		s.roomOrder = append(s.roomOrder, room.ID)
	}
	s.rooms[room.ID] = room
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return nil
	}
	delete(s.rooms, id)
	s.roomOrder = slices.DeleteFunc(s.roomOrder, func(r model.RoomID) bool { return r == id })
	return nil
}

func (s *Storage) RoomExists(ctx context.Context, id model.RoomID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Room, 0, len(s.roomOrder))
	for _, id := range s.roomOrder {
		result = append(result, s.rooms[id].Clone())
	}
	return result, nil
}

func (s *Storage) RoomCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms), nil
}

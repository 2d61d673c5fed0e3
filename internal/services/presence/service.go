// Package presence is the registry of logged-in users.
package presence

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Service tracks one live record per logged-in user ID
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new presence Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "presence")),
	}
}

// Upsert records the user as online on conn. A re-login replaces the
// previous record but keeps its position in listings.
func (s *Service) Upsert(ctx context.Context, id model.UserID, displayName string, conn model.ConnID) (model.User, error) {
	user := &model.User{
		ID:           id,
		DisplayName:  displayName,
		ConnID:       conn,
		Status:       model.UserStatusOnline,
		LastActiveAt: s.clock.Now(),
	}
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("save user %s: %w", id, err)
	}
	return *user, nil
}

// Get returns the user, or model.ErrUserNotFound
func (s *Service) Get(ctx context.Context, id model.UserID) (model.User, error) {
	user, err := s.storage.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return *user, nil
}

// Remove deletes the user. Removing an absent user is a no-op.
func (s *Service) Remove(ctx context.Context, id model.UserID) error {
	if err := s.storage.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// All yields every online user in login order. Each range over the
// returned sequence reads a fresh snapshot.
func (s *Service) All(ctx context.Context) iter.Seq[model.User] {
	return func(yield func(model.User) bool) {
		users, err := s.storage.ListUsers(ctx)
		if err != nil {
			s.logger.Error("failed to list users", slog.String("error", err.Error()))
			return
		}
		for _, u := range users {
			if !yield(u) {
				return
			}
		}
	}
}

// Count returns the number of online users
func (s *Service) Count(ctx context.Context) int {
	n, err := s.storage.UserCount(ctx)
	if err != nil {
		s.logger.Error("failed to count users", slog.String("error", err.Error()))
		return 0
	}
	return n
}

package model

import "time"

// UserID is the client-supplied identity of a user
type UserID string

// ConnID identifies a live transport connection
type ConnID string

// UserStatus represents a user's presence state
type UserStatus string

const (
	UserStatusOnline UserStatus = "online"
)

// User is a logged-in user as tracked by the presence registry
type User struct {
	ID           UserID
	DisplayName  string
	ConnID       ConnID // Connection that owns this login
	Status       UserStatus
	LastActiveAt time.Time
}

// Player is a user's membership entry inside a room.
// The user record is copied by value at join time so room snapshots never
// change when the presence registry does.
type Player struct {
	User
	IsReady bool
}

// NewPlayer creates a not-ready Player from a User
func NewPlayer(u User) Player {
	return Player{User: u, IsReady: false}
}

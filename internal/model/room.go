package model

import (
	"slices"
	"time"
)

// RoomID uniquely identifies a room for the lifetime of the process
type RoomID string

// RoomStatus represents the current state of a room
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	// RoomStatusPlaying is reserved; nothing in the lobby surface sets it
	RoomStatusPlaying RoomStatus = "playing"
)

// DefaultMaxPlayers is used when a room is created without a capacity
const DefaultMaxPlayers = 2

// Room is an ephemeral lobby grouping 1..MaxPlayers users before a match
type Room struct {
	ID           RoomID
	Name         string
	HostID       UserID
	Players      []Player // Join order; Players[0] is the next host on failover
	Status       RoomStatus
	MaxPlayers   int
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// GetMember returns the member with the given user ID, or nil if not found
func (r *Room) GetMember(id UserID) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// HasMember reports whether the user is in the room
func (r *Room) HasMember(id UserID) bool {
	return r.GetMember(id) != nil
}

// IsFull reports whether the room has reached capacity
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// RemoveMember drops the user from the room and reports whether it was present
func (r *Room) RemoveMember(id UserID) bool {
	before := len(r.Players)
	r.Players = slices.DeleteFunc(r.Players, func(p Player) bool {
		return p.ID == id
	})
	return len(r.Players) != before
}

// Clone returns a copy of the room that shares no memory with r
func (r *Room) Clone() Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	return c
}

package protocol

import (
	"encoding/json"
	"iter"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/model"
)

// Message is the frame every outbound message is sent in
type Message struct {
	Event model.OutboundKind `json:"event"`
	Data  any                `json:"data"`
}

// Encode marshals an outbound frame
func Encode(kind model.OutboundKind, payload any) ([]byte, error) {
	return json.Marshal(Message{Event: kind, Data: payload})
}

// User is the wire form of a logged-in user
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	SocketID   string `json:"socketId"`
	Status     string `json:"status"`
	LastActive int64  `json:"lastActive"`
}

// Player is the wire form of a room member
type Player struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	SocketID   string `json:"socketId"`
	Status     string `json:"status"`
	LastActive int64  `json:"lastActive"`
	IsReady    bool   `json:"isReady"`
}

// Room is the wire form of a room
type Room struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	HostID     string   `json:"hostId"`
	Players    []Player `json:"players"`
	Status     string   `json:"status"`
	MaxPlayers int      `json:"maxPlayers"`
	CreatedAt  int64    `json:"createdAt"`
	LastActive int64    `json:"lastActive"`
}

// ConnectionEstablished greets a new connection
type ConnectionEstablished struct {
	SocketID   string `json:"socketId"`
	ServerTime int64  `json:"serverTime"`
	Message    string `json:"message"`
}

// LoginSuccess acknowledges user:login
type LoginSuccess struct {
	User        User   `json:"user"`
	OnlineUsers []User `json:"onlineUsers"`
	ActiveRooms []Room `json:"activeRooms"`
}

// RoomLeft acknowledges room:leave
type RoomLeft struct {
	RoomID string `json:"roomId"`
}

// Error reports a failed request to its sender
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewUser converts a model user
func NewUser(u model.User) User {
	return User{
		ID:         string(u.ID),
		Username:   u.DisplayName,
		SocketID:   string(u.ConnID),
		Status:     string(u.Status),
		LastActive: clock.Millis(u.LastActiveAt),
	}
}

// NewUsers converts a sequence of users. The result is never nil so it
// always encodes as a JSON array.
func NewUsers(users iter.Seq[model.User]) []User {
	out := []User{}
	for u := range users {
		out = append(out, NewUser(u))
	}
	return out
}

// NewPlayer converts a model room member
func NewPlayer(p model.Player) Player {
	return Player{
		ID:         string(p.ID),
		Username:   p.DisplayName,
		SocketID:   string(p.ConnID),
		Status:     string(p.Status),
		LastActive: clock.Millis(p.LastActiveAt),
		IsReady:    p.IsReady,
	}
}

// NewRoom converts a model room
func NewRoom(r model.Room) Room {
	players := make([]Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = NewPlayer(p)
	}
	return Room{
		ID:         string(r.ID),
		Name:       r.Name,
		HostID:     string(r.HostID),
		Players:    players,
		Status:     string(r.Status),
		MaxPlayers: r.MaxPlayers,
		CreatedAt:  clock.Millis(r.CreatedAt),
		LastActive: clock.Millis(r.LastActiveAt),
	}
}

// NewRooms converts a sequence of rooms. The result is never nil.
func NewRooms(rooms iter.Seq[model.Room]) []Room {
	out := []Room{}
	for r := range rooms {
		out = append(out, NewRoom(r))
	}
	return out
}

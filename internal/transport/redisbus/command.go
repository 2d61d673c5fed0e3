package redisbus

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/lobbysync/internal/model"
)

// Relayed operations
const (
	opSend   = "send"
	opGlobal = "global"
	opRoom   = "room"
	opJoin   = "join"
	opLeave  = "leave"
	opDrop   = "drop"
)

// command is one Notifier call serialized for the channel. Frames are
// encoded before publishing so subscribers never re-encode payloads.
type command struct {
	Op    string          `json:"op"`
	Conn  model.ConnID    `json:"conn,omitempty"`
	Room  model.RoomID    `json:"room,omitempty"`
	Frame json.RawMessage `json:"frame,omitempty"`
}

// Sink receives relayed commands; the WebSocket hub implements it
type Sink interface {
	SendFrame(conn model.ConnID, frame []byte)
	BroadcastFrame(frame []byte)
	RoomFrame(room model.RoomID, frame []byte)
	JoinGroup(conn model.ConnID, room model.RoomID)
	LeaveGroup(conn model.ConnID, room model.RoomID)
	DropGroup(room model.RoomID)
}

func (c command) apply(sink Sink) error {
	switch c.Op {
	case opSend:
		sink.SendFrame(c.Conn, c.Frame)
	case opGlobal:
		sink.BroadcastFrame(c.Frame)
	case opRoom:
		sink.RoomFrame(c.Room, c.Frame)
	case opJoin:
		sink.JoinGroup(c.Conn, c.Room)
	case opLeave:
		sink.LeaveGroup(c.Conn, c.Room)
	case opDrop:
		sink.DropGroup(c.Room)
	default:
		return fmt.Errorf("unknown relay op %q", c.Op)
	}
	return nil
}

// Sinks applies each relayed command to every sink in order
type Sinks []Sink

var _ Sink = Sinks(nil)

func (s Sinks) SendFrame(conn model.ConnID, frame []byte) {
	for _, sink := range s {
		sink.SendFrame(conn, frame)
	}
}

func (s Sinks) BroadcastFrame(frame []byte) {
	for _, sink := range s {
		sink.BroadcastFrame(frame)
	}
}

func (s Sinks) RoomFrame(room model.RoomID, frame []byte) {
	for _, sink := range s {
		sink.RoomFrame(room, frame)
	}
}

func (s Sinks) JoinGroup(conn model.ConnID, room model.RoomID) {
	for _, sink := range s {
		sink.JoinGroup(conn, room)
	}
}

func (s Sinks) LeaveGroup(conn model.ConnID, room model.RoomID) {
	for _, sink := range s {
		sink.LeaveGroup(conn, room)
	}
}

func (s Sinks) DropGroup(room model.RoomID) {
	for _, sink := range s {
		sink.DropGroup(room)
	}
}

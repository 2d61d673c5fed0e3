package broadcast

import "github.com/mcoot/lobbysync/internal/model"

// Fanout forwards every notification to each of its Notifiers in order
type Fanout []Notifier

var _ Notifier = Fanout(nil)

func (f Fanout) SendTo(conn model.ConnID, kind model.OutboundKind, payload any) {
	for _, n := range f {
		n.SendTo(conn, kind, payload)
	}
}

func (f Fanout) NotifyGlobal(kind model.OutboundKind, payload any) {
	for _, n := range f {
		n.NotifyGlobal(kind, payload)
	}
}

func (f Fanout) NotifyRoom(room model.RoomID, kind model.OutboundKind, payload any) {
	for _, n := range f {
		n.NotifyRoom(room, kind, payload)
	}
}

func (f Fanout) JoinGroup(conn model.ConnID, room model.RoomID) {
	for _, n := range f {
		n.JoinGroup(conn, room)
	}
}

func (f Fanout) LeaveGroup(conn model.ConnID, room model.RoomID) {
	for _, n := range f {
		n.LeaveGroup(conn, room)
	}
}

func (f Fanout) DropGroup(room model.RoomID) {
	for _, n := range f {
		n.DropGroup(room)
	}
}

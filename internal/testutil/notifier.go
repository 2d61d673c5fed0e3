package testutil

import (
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
)

// Delivery is one message captured by RecordingNotifier.
// Exactly one of Conn, Room or Global identifies the audience.
type Delivery struct {
	Conn    model.ConnID
	Room    model.RoomID
	Global  bool
	Kind    model.OutboundKind
	Payload any
}

// RecordingNotifier captures every notification and tracks group
// membership so tests can assert on fan-out without a transport.
type RecordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	groups     map[model.RoomID]map[model.ConnID]bool
}

// NewRecordingNotifier creates an empty RecordingNotifier
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{groups: make(map[model.RoomID]map[model.ConnID]bool)}
}

func (n *RecordingNotifier) SendTo(conn model.ConnID, kind model.OutboundKind, payload any) {
	n.record(Delivery{Conn: conn, Kind: kind, Payload: payload})
}

func (n *RecordingNotifier) NotifyGlobal(kind model.OutboundKind, payload any) {
	n.record(Delivery{Global: true, Kind: kind, Payload: payload})
}

func (n *RecordingNotifier) NotifyRoom(room model.RoomID, kind model.OutboundKind, payload any) {
	n.record(Delivery{Room: room, Kind: kind, Payload: payload})
}

func (n *RecordingNotifier) JoinGroup(conn model.ConnID, room model.RoomID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.groups[room] == nil {
		n.groups[room] = make(map[model.ConnID]bool)
	}
	n.groups[room][conn] = true
}

func (n *RecordingNotifier) LeaveGroup(conn model.ConnID, room model.RoomID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.groups[room], conn)
	if len(n.groups[room]) == 0 {
		delete(n.groups, room)
	}
}

func (n *RecordingNotifier) DropGroup(room model.RoomID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.groups, room)
}

func (n *RecordingNotifier) record(d Delivery) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
}

// Deliveries returns everything recorded so far
func (n *RecordingNotifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}

// Kinds returns the kinds of every recorded delivery, in order
func (n *RecordingNotifier) Kinds() []model.OutboundKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.OutboundKind, len(n.deliveries))
	for i, d := range n.deliveries {
		out[i] = d.Kind
	}
	return out
}

// Last returns the most recent delivery of the given kind
func (n *RecordingNotifier) Last(kind model.OutboundKind) (Delivery, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.deliveries) - 1; i >= 0; i-- {
		if n.deliveries[i].Kind == kind {
			return n.deliveries[i], true
		}
	}
	return Delivery{}, false
}

// InGroup reports whether conn is subscribed to room
func (n *RecordingNotifier) InGroup(conn model.ConnID, room model.RoomID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.groups[room][conn]
}

// GroupExists reports whether room has a group
func (n *RecordingNotifier) GroupExists(room model.RoomID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.groups[room]
	return ok
}

// Reset forgets recorded deliveries but keeps group membership
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = nil
}

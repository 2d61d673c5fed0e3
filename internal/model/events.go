package model

// Event is an inbound request from a connection.
// The set of implementations is closed; the coordinator switches over them.
type Event interface {
	// Name returns the wire name of the event
	Name() string
	sealed()
}

// Inbound event names
const (
	EventLogin      = "user:login"
	EventLogout     = "user:logout"
	EventCreateRoom = "room:create"
	EventJoinRoom   = "room:join"
	EventLeaveRoom  = "room:leave"
	EventDisconnect = "disconnect"
)

// Login binds a user identity to the sending connection
type Login struct {
	UserID      UserID
	DisplayName string
}

// Logout removes the connection's user and cleans up its rooms
type Logout struct{}

// CreateRoom opens a new room with HostID as its first member
type CreateRoom struct {
	RoomName   string
	HostID     UserID
	MaxPlayers int // Zero selects DefaultMaxPlayers
}

// JoinRoom adds a user to an existing room
type JoinRoom struct {
	RoomID RoomID
	UserID UserID
}

// LeaveRoom removes a user from a room
type LeaveRoom struct {
	RoomID RoomID
	UserID UserID
}

// Disconnect is raised by the transport when a connection goes away
type Disconnect struct{}

func (Login) Name() string      { return EventLogin }
func (Logout) Name() string     { return EventLogout }
func (CreateRoom) Name() string { return EventCreateRoom }
func (JoinRoom) Name() string   { return EventJoinRoom }
func (LeaveRoom) Name() string  { return EventLeaveRoom }
func (Disconnect) Name() string { return EventDisconnect }

func (Login) sealed()      {}
func (Logout) sealed()     {}
func (CreateRoom) sealed() {}
func (JoinRoom) sealed()   {}
func (LeaveRoom) sealed()  {}
func (Disconnect) sealed() {}

// OutboundKind names a message pushed to clients
type OutboundKind string

const (
	KindConnectionEstablished OutboundKind = "connection:established"
	KindLoginSuccess          OutboundKind = "user:login_success"
	KindUsersUpdate           OutboundKind = "users:update"
	KindRoomsUpdate           OutboundKind = "rooms:update"
	KindRoomCreated           OutboundKind = "room:created"
	KindRoomJoined            OutboundKind = "room:joined"
	KindRoomUpdate            OutboundKind = "room:update"
	KindRoomLeft              OutboundKind = "room:left"
	KindError                 OutboundKind = "error"
)

package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/services/broadcast"
	"github.com/mcoot/lobbysync/internal/services/presence"
	"github.com/mcoot/lobbysync/internal/services/rooms"
	"github.com/mcoot/lobbysync/internal/session"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) EventHandled(event string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, event+"="+outcome)
}

type CoordinatorSuite struct {
	suite.Suite
	notifier    *testutil.RecordingNotifier
	observer    *recordingObserver
	sessions    *session.Map
	users       *presence.Service
	rooms       *rooms.Controller
	random      *mocks.MockRandom
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.notifier = testutil.NewRecordingNotifier()
	s.observer = &recordingObserver{}
	s.build(s.notifier)
}

func (s *CoordinatorSuite) build(notifier broadcast.Notifier) {
	store := memory.New()
	logger := testutil.NopLogger()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.sessions = session.NewMap()
	s.users = presence.New(store, clk, logger)
	s.rooms = rooms.NewController(store, s.users, clk, s.random, logger)
	out := broadcast.New(notifier, s.users, s.rooms, logger)
	s.coordinator = New(s.sessions, s.users, s.rooms, out, s.observer, logger)
	s.ctx = context.Background()
}

func (s *CoordinatorSuite) handle(conn string, event model.Event) error {
	return s.coordinator.Handle(s.ctx, model.ConnID(conn), event)
}

// login logs in user "u<n>" on connection "c<n>" and clears recorded output
func (s *CoordinatorSuite) login(ids ...string) {
	for _, id := range ids {
		s.Require().NoError(s.handle("c-"+id, model.Login{UserID: model.UserID(id), DisplayName: "name-" + id}))
	}
	s.notifier.Reset()
}

func (s *CoordinatorSuite) createRoom(host string, maxPlayers int) model.RoomID {
	s.Require().NoError(s.handle("c-"+host, model.CreateRoom{RoomName: "Room", HostID: model.UserID(host), MaxPlayers: maxPlayers}))
	d, ok := s.notifier.Last(model.KindRoomCreated)
	s.Require().True(ok)
	s.notifier.Reset()
	return model.RoomID(d.Payload.(protocol.Room).ID)
}

func (s *CoordinatorSuite) join(user string, room model.RoomID) {
	s.Require().NoError(s.handle("c-"+user, model.JoinRoom{RoomID: room, UserID: model.UserID(user)}))
	s.notifier.Reset()
}

func (s *CoordinatorSuite) lastError() protocol.Error {
	d, ok := s.notifier.Last(model.KindError)
	s.Require().True(ok)
	return d.Payload.(protocol.Error)
}

// Login tests

func (s *CoordinatorSuite) TestLoginEmitsInOrder() {
	err := s.handle("c1", model.Login{UserID: "u1", DisplayName: "Alice"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{
		model.KindUsersUpdate,
		model.KindRoomsUpdate,
		model.KindLoginSuccess,
	}, s.notifier.Kinds())

	deliveries := s.notifier.Deliveries()
	s.True(deliveries[0].Global)
	s.True(deliveries[1].Global)
	s.Equal(model.ConnID("c1"), deliveries[2].Conn)

	ack := deliveries[2].Payload.(protocol.LoginSuccess)
	s.Equal("u1", ack.User.ID)
	s.Equal("c1", ack.User.SocketID)
	s.Equal("online", ack.User.Status)
	s.Len(ack.OnlineUsers, 1)
	s.Empty(ack.ActiveRooms)
}

func (s *CoordinatorSuite) TestLoginBindsSession() {
	s.login("u1")

	userID, ok := s.sessions.Resolve("c-u1")
	s.True(ok)
	s.Equal(model.UserID("u1"), userID)
}

func (s *CoordinatorSuite) TestLoginMissingFields() {
	err := s.handle("c1", model.Login{UserID: "u1"})
	s.ErrorIs(err, model.ErrMissingFields)

	s.Equal([]model.OutboundKind{model.KindError}, s.notifier.Kinds())
	s.Equal(CodeMissingFields, s.lastError().Code)
	s.Equal(0, s.users.Count(s.ctx))
}

func (s *CoordinatorSuite) TestReloginOnSameConnectionRebinds() {
	s.login("u1")
	s.Require().NoError(s.handle("c-u1", model.Login{UserID: "u2", DisplayName: "Other"}))

	userID, _ := s.sessions.Resolve("c-u1")
	s.Equal(model.UserID("u2"), userID)
	s.Equal(1, s.sessions.Len())
}

// Logout tests

func (s *CoordinatorSuite) TestLogoutWhenNotLoggedInIsIgnored() {
	err := s.handle("c1", model.Logout{})
	s.NoError(err)
	s.Empty(s.notifier.Kinds())
}

func (s *CoordinatorSuite) TestLogoutRemovesUserAndRooms() {
	s.login("u1", "u2")
	r1 := s.createRoom("u1", 2)
	r2 := s.createRoom("u2", 2)
	s.join("u1", r2)

	err := s.handle("c-u1", model.Logout{})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{
		model.KindRoomUpdate,
		model.KindUsersUpdate,
		model.KindRoomsUpdate,
	}, s.notifier.Kinds())

	update, _ := s.notifier.Last(model.KindRoomUpdate)
	s.Equal(r2, update.Room)

	_, err = s.users.Get(s.ctx, "u1")
	s.ErrorIs(err, model.ErrUserNotFound)
	_, err = s.rooms.Get(s.ctx, r1)
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.False(s.notifier.GroupExists(r1))
	s.False(s.notifier.InGroup("c-u1", r2))

	_, ok := s.sessions.Resolve("c-u1")
	s.False(ok)
}

// Create tests

func (s *CoordinatorSuite) TestCreateRoom() {
	s.login("u1")

	err := s.handle("c-u1", model.CreateRoom{RoomName: "Fun", HostID: "u1"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{model.KindRoomCreated, model.KindRoomsUpdate}, s.notifier.Kinds())
	created, _ := s.notifier.Last(model.KindRoomCreated)
	s.Equal(model.ConnID("c-u1"), created.Conn)
	room := created.Payload.(protocol.Room)
	s.Equal("Fun", room.Name)
	s.Equal(model.DefaultMaxPlayers, room.MaxPlayers)
	s.True(s.notifier.InGroup("c-u1", model.RoomID(room.ID)))
}

func (s *CoordinatorSuite) TestCreateRoomUnknownHost() {
	err := s.handle("c1", model.CreateRoom{RoomName: "Fun", HostID: "ghost"})
	s.ErrorIs(err, model.ErrHostNotFound)

	s.Equal([]model.OutboundKind{model.KindError}, s.notifier.Kinds())
	s.Equal(CodeHostNotFound, s.lastError().Code)
	s.Equal(0, s.rooms.Count(s.ctx))
}

// Join tests

func (s *CoordinatorSuite) TestJoinRoomEmitsInOrder() {
	s.login("u1", "u2")
	room := s.createRoom("u1", 2)

	err := s.handle("c-u2", model.JoinRoom{RoomID: room, UserID: "u2"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{
		model.KindRoomJoined,
		model.KindRoomUpdate,
		model.KindRoomsUpdate,
	}, s.notifier.Kinds())

	deliveries := s.notifier.Deliveries()
	s.Equal(model.ConnID("c-u2"), deliveries[0].Conn)
	s.Equal(room, deliveries[1].Room)
	s.True(deliveries[2].Global)
	s.Len(deliveries[1].Payload.(protocol.Room).Players, 2)
	s.True(s.notifier.InGroup("c-u2", room))
}

func (s *CoordinatorSuite) TestRejoinOnlyAcknowledges() {
	s.login("u1")
	room := s.createRoom("u1", 3)

	err := s.handle("c-u1-reconnected", model.JoinRoom{RoomID: room, UserID: "u1"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{model.KindRoomJoined}, s.notifier.Kinds())
	s.True(s.notifier.InGroup("c-u1-reconnected", room))
}

func (s *CoordinatorSuite) TestJoinErrors() {
	s.login("u1", "u2", "u3")
	full := s.createRoom("u1", 2)
	s.join("u2", full)

	tests := []struct {
		name  string
		event model.JoinRoom
		code  string
	}{
		{"unknown user", model.JoinRoom{RoomID: full, UserID: "ghost"}, CodeUserNotFound},
		{"unknown room", model.JoinRoom{RoomID: "room_nope", UserID: "u3"}, CodeRoomNotFound},
		{"full room", model.JoinRoom{RoomID: full, UserID: "u3"}, CodeRoomFull},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.notifier.Reset()
			err := s.handle("c-u3", tt.event)
			s.Error(err)
			s.Equal([]model.OutboundKind{model.KindError}, s.notifier.Kinds())
			s.Equal(tt.code, s.lastError().Code)
		})
	}
}

// Leave tests

func (s *CoordinatorSuite) TestLeaveSurvivingRoom() {
	s.login("u1", "u2")
	room := s.createRoom("u1", 2)
	s.join("u2", room)

	err := s.handle("c-u1", model.LeaveRoom{RoomID: room, UserID: "u1"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{
		model.KindRoomUpdate,
		model.KindRoomsUpdate,
		model.KindRoomLeft,
	}, s.notifier.Kinds())

	update, _ := s.notifier.Last(model.KindRoomUpdate)
	s.Equal("u2", update.Payload.(protocol.Room).HostID)
	left, _ := s.notifier.Last(model.KindRoomLeft)
	s.Equal(protocol.RoomLeft{RoomID: string(room)}, left.Payload)
	s.False(s.notifier.InGroup("c-u1", room))
	s.True(s.notifier.InGroup("c-u2", room))
}

func (s *CoordinatorSuite) TestLeaveDeletesEmptyRoom() {
	s.login("u1")
	room := s.createRoom("u1", 2)

	err := s.handle("c-u1", model.LeaveRoom{RoomID: room, UserID: "u1"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{model.KindRoomsUpdate}, s.notifier.Kinds())
	s.False(s.notifier.GroupExists(room))
	s.Equal(0, s.rooms.Count(s.ctx))
}

func (s *CoordinatorSuite) TestLeaveWhenNotMemberOnlyAcknowledges() {
	s.login("u1", "u2")
	room := s.createRoom("u1", 2)

	err := s.handle("c-u2", model.LeaveRoom{RoomID: room, UserID: "u2"})
	s.Require().NoError(err)

	s.Equal([]model.OutboundKind{model.KindRoomLeft}, s.notifier.Kinds())
	current, _ := s.rooms.Get(s.ctx, room)
	s.Len(current.Players, 1)
}

func (s *CoordinatorSuite) TestLeaveUnknownRoom() {
	err := s.handle("c1", model.LeaveRoom{RoomID: "room_nope", UserID: "u1"})
	s.ErrorIs(err, model.ErrRoomNotFound)
	s.Equal(CodeRoomNotFound, s.lastError().Code)
}

// Disconnect tests

func (s *CoordinatorSuite) TestDisconnectWithoutSessionIsNoop() {
	err := s.handle("c1", model.Disconnect{})
	s.NoError(err)
	s.Empty(s.notifier.Kinds())
}

func (s *CoordinatorSuite) TestDisconnectCleansUpEveryRoom() {
	s.login("u1", "u2", "u3")
	r1 := s.createRoom("u1", 3)
	r2 := s.createRoom("u2", 3)
	r3 := s.createRoom("u1", 2)
	s.join("u2", r1)
	s.join("u3", r1)
	s.join("u1", r2)

	err := s.handle("c-u1", model.Disconnect{})
	s.Require().NoError(err)

	var updated []model.RoomID
	for _, d := range s.notifier.Deliveries() {
		if d.Kind == model.KindRoomUpdate {
			updated = append(updated, d.Room)
		}
	}
	s.Equal([]model.RoomID{r1, r2}, updated)

	room1, _ := s.rooms.Get(s.ctx, r1)
	s.Equal(model.UserID("u2"), room1.HostID)
	s.Equal(2, len(room1.Players))
	room2, _ := s.rooms.Get(s.ctx, r2)
	s.Equal(model.UserID("u2"), room2.HostID)
	_, err = s.rooms.Get(s.ctx, r3)
	s.ErrorIs(err, model.ErrRoomNotFound)

	usersUpdate, _ := s.notifier.Last(model.KindUsersUpdate)
	s.Len(usersUpdate.Payload.([]protocol.User), 2)
}

func (s *CoordinatorSuite) TestDisconnectOfStaleConnectionStillRemovesUser() {
	s.login("u1")
	s.Require().NoError(s.handle("c-new", model.Login{UserID: "u1", DisplayName: "again"}))

	err := s.handle("c-u1", model.Disconnect{})
	s.Require().NoError(err)

	_, err = s.users.Get(s.ctx, "u1")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Error handling tests

func (s *CoordinatorSuite) TestReject() {
	s.coordinator.Reject("c1", model.ErrUnknownEvent)

	s.Equal(CodeInvalidRequest, s.lastError().Code)
	s.Equal([]string{"invalid=" + CodeInvalidRequest}, s.observer.outcomes)
}

func (s *CoordinatorSuite) TestObserverSeesOutcomes() {
	s.login("u1")
	_ = s.handle("c-u1", model.JoinRoom{RoomID: "room_nope", UserID: "u1"})

	s.Equal([]string{
		"user:login=ok",
		"room:join=" + CodeRoomNotFound,
	}, s.observer.outcomes)
}

type panickingNotifier struct {
	*testutil.RecordingNotifier
}

func (panickingNotifier) NotifyGlobal(model.OutboundKind, any) {
	panic("transport exploded")
}

func (s *CoordinatorSuite) TestPanicIsRecoveredAsInternalError() {
	s.build(panickingNotifier{s.notifier})

	err := s.handle("c1", model.Login{UserID: "u1", DisplayName: "Alice"})
	s.Require().Error(err)

	s.Equal(CodeInternalError, s.lastError().Code)
	s.Equal("internal server error", s.lastError().Message)

	// The gate is released
	err = s.handle("c1", model.Logout{})
	s.Require().Error(err)
}

func (s *CoordinatorSuite) TestConcurrentJoinsNeverOverbook() {
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	s.login(users...)
	room := s.createRoom("u1", 4)

	var wg sync.WaitGroup
	for _, u := range users[1:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.coordinator.Handle(s.ctx, model.ConnID("c-"+u), model.JoinRoom{RoomID: room, UserID: model.UserID(u)})
		}()
	}
	wg.Wait()

	current, err := s.rooms.Get(s.ctx, room)
	s.Require().NoError(err)
	s.Len(current.Players, 4)

	full := 0
	for _, d := range s.notifier.Deliveries() {
		if d.Kind == model.KindError {
			s.Equal(CodeRoomFull, d.Payload.(protocol.Error).Code)
			full++
		}
	}
	s.Equal(4, full)
}

func (s *CoordinatorSuite) TestSnapshot() {
	users, rooms := s.coordinator.Snapshot(s.ctx)
	s.Empty(users)
	s.Empty(rooms)

	s.login("alice", "bob")
	roomID := s.createRoom("alice", 4)
	s.join("bob", roomID)

	users, rooms = s.coordinator.Snapshot(s.ctx)
	s.Require().Len(users, 2)
	s.Equal("alice", users[0].ID)
	s.Require().Len(rooms, 1)
	s.Equal(string(roomID), rooms[0].ID)
	s.Len(rooms[0].Players, 2)
}

func (s *CoordinatorSuite) TestResyncRebroadcastsListings() {
	s.login("alice")
	s.notifier.Reset()

	s.coordinator.Resync(s.ctx)

	s.Equal([]model.OutboundKind{model.KindUsersUpdate, model.KindRoomsUpdate}, s.notifier.Kinds())
	users, ok := s.notifier.Last(model.KindUsersUpdate)
	s.Require().True(ok)
	s.Len(users.Payload, 1)
}

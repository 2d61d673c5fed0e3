package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/services/presence"
	"github.com/mcoot/lobbysync/internal/services/rooms"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
)

type DispatcherSuite struct {
	suite.Suite
	notifier   *testutil.RecordingNotifier
	users      *presence.Service
	rooms      *rooms.Controller
	dispatcher *Dispatcher
	ctx        context.Context
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	store := memory.New()
	logger := testutil.NopLogger()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.notifier = testutil.NewRecordingNotifier()
	s.users = presence.New(store, clk, logger)
	s.rooms = rooms.NewController(store, s.users, clk, mocks.NewMockRandom(), logger)
	s.dispatcher = New(s.notifier, s.users, s.rooms, logger)
	s.ctx = context.Background()
}

func (s *DispatcherSuite) TestUsersChangedSendsFullSnapshot() {
	_, _ = s.users.Upsert(s.ctx, "u1", "Alice", "c1")
	_, _ = s.users.Upsert(s.ctx, "u2", "Bob", "c2")

	s.dispatcher.UsersChanged(s.ctx)

	d, ok := s.notifier.Last(model.KindUsersUpdate)
	s.Require().True(ok)
	s.True(d.Global)
	users, ok := d.Payload.([]protocol.User)
	s.Require().True(ok)
	s.Require().Len(users, 2)
	s.Equal("u1", users[0].ID)
	s.Equal("Bob", users[1].Username)
}

func (s *DispatcherSuite) TestRoomsChangedWithNoRoomsSendsEmptyList() {
	s.dispatcher.RoomsChanged(s.ctx)

	d, ok := s.notifier.Last(model.KindRoomsUpdate)
	s.Require().True(ok)
	s.True(d.Global)
	s.Equal([]protocol.Room{}, d.Payload)
}

func (s *DispatcherSuite) TestRoomChangedTargetsRoomGroup() {
	_, _ = s.users.Upsert(s.ctx, "u1", "Alice", "c1")
	room, err := s.rooms.Create(s.ctx, "R", "u1", 2)
	s.Require().NoError(err)

	s.dispatcher.RoomChanged(room)

	d, ok := s.notifier.Last(model.KindRoomUpdate)
	s.Require().True(ok)
	s.False(d.Global)
	s.Equal(room.ID, d.Room)
	s.Equal(protocol.NewRoom(room), d.Payload)
}

func (s *DispatcherSuite) TestSendError() {
	s.dispatcher.SendError("c1", "room is full", "ROOM_FULL")

	d, ok := s.notifier.Last(model.KindError)
	s.Require().True(ok)
	s.Equal(model.ConnID("c1"), d.Conn)
	s.Equal(protocol.Error{Message: "room is full", Code: "ROOM_FULL"}, d.Payload)
}

func (s *DispatcherSuite) TestGroupMembership() {
	s.dispatcher.Subscribe("c1", "r1")
	s.dispatcher.Subscribe("c2", "r1")
	s.True(s.notifier.InGroup("c1", "r1"))

	s.dispatcher.Unsubscribe("c1", "r1")
	s.False(s.notifier.InGroup("c1", "r1"))
	s.True(s.notifier.InGroup("c2", "r1"))

	s.dispatcher.CloseRoom("r1")
	s.False(s.notifier.GroupExists("r1"))
}

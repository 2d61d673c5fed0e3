package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/protocol"
	"github.com/mcoot/lobbysync/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "users",
			data:      "hello world",
			expected:  "event: users\ndata: hello world\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "rooms",
			data:      "<div>\n  <p>line1</p>\n</div>",
			expected:  "event: rooms\ndata: <div>\ndata:   <p>line1</p>\ndata: </div>\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "carriage returns and trailing newline",
			eventName: "test",
			data:      "line1\r\nline2\r\n",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.eventName, tt.data)))
		})
	}
}

type HubSuite struct {
	suite.Suite
	hub    *Hub
	cancel context.CancelFunc
	ctx    context.Context
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.hub = NewHub(testutil.NopLogger())
	hub, ctx := s.hub, s.ctx
	go func() { _ = hub.Run(ctx) }()
}

func (s *HubSuite) TearDownTest() {
	s.cancel()
}

func (s *HubSuite) receive(c *Client) string {
	select {
	case msg := <-c.send:
		return string(msg)
	case <-time.After(testutil.EventuallyTimeout):
		s.FailNow("client did not receive message")
		return ""
	}
}

func (s *HubSuite) TestBroadcastReachesEveryClient() {
	clients := []*Client{NewClient(), NewClient(), NewClient()}
	for _, c := range clients {
		s.Require().True(s.hub.Register(s.ctx, c))
	}
	s.Eventually(func() bool { return s.hub.ClientCount() == 3 }, testutil.EventuallyTimeout, testutil.EventuallyTick)

	s.hub.BroadcastEvent("users", "data")

	for _, c := range clients {
		s.Equal("event: users\ndata: data\n\n", s.receive(c))
	}
}

func (s *HubSuite) TestUnregister() {
	c := NewClient()
	s.Require().True(s.hub.Register(s.ctx, c))
	s.hub.Unregister(c)

	s.Eventually(func() bool { return s.hub.ClientCount() == 0 }, testutil.EventuallyTimeout, testutil.EventuallyTick)
	_, open := <-c.send
	s.False(open)
}

func (s *HubSuite) TestStopClosesClients() {
	c := NewClient()
	s.Require().True(s.hub.Register(s.ctx, c))

	s.cancel()

	select {
	case _, open := <-c.send:
		s.False(open)
	case <-time.After(testutil.EventuallyTimeout):
		s.Fail("client channel not closed")
	}
	s.Eventually(func() bool { return !s.hub.Register(context.Background(), NewClient()) }, testutil.EventuallyTimeout, testutil.EventuallyTick)
}

func (s *HubSuite) TestFeedRendersSnapshots() {
	c := NewClient()
	s.Require().True(s.hub.Register(s.ctx, c))
	feed := NewFeed(s.hub, testutil.NopLogger())

	feed.NotifyGlobal(model.KindUsersUpdate, []protocol.User{{ID: "u1", Username: "Alice", Status: "online"}})
	msg := s.receive(c)
	s.True(strings.HasPrefix(msg, "event: users\n"))
	s.Contains(msg, "Alice")

	feed.NotifyGlobal(model.KindRoomsUpdate, []protocol.Room{})
	msg = s.receive(c)
	s.True(strings.HasPrefix(msg, "event: rooms\n"))
	s.Contains(msg, "No open rooms")
}

func (s *HubSuite) TestFeedIgnoresOtherKinds() {
	c := NewClient()
	s.Require().True(s.hub.Register(s.ctx, c))
	feed := NewFeed(s.hub, testutil.NopLogger())

	feed.SendTo("c1", model.KindLoginSuccess, protocol.LoginSuccess{})
	feed.NotifyRoom("room-1", model.KindRoomUpdate, protocol.Room{})
	feed.NotifyGlobal(model.KindError, protocol.Error{})
	feed.NotifyGlobal(model.KindUsersUpdate, []protocol.User{})

	msg := s.receive(c)
	s.True(strings.HasPrefix(msg, "event: users\n"), msg)
}

func (s *HubSuite) TestFeedRendersRelayedFrames() {
	c := NewClient()
	s.Require().True(s.hub.Register(s.ctx, c))
	feed := NewFeed(s.hub, testutil.NopLogger())

	frame, err := protocol.Encode(model.KindUsersUpdate, []protocol.User{{ID: "u1", Username: "Alice"}})
	s.Require().NoError(err)
	feed.BroadcastFrame([]byte(`not json`))
	feed.BroadcastFrame(frame)

	msg := s.receive(c)
	s.True(strings.HasPrefix(msg, "event: users\n"), msg)
	s.Contains(msg, "Alice")
}

func (s *HubSuite) TestFeedKeepsLatestListings() {
	feed := NewFeed(s.hub, testutil.NopLogger())
	users, rooms := feed.Snapshot(s.ctx)
	s.Empty(users)
	s.Empty(rooms)

	feed.NotifyGlobal(model.KindUsersUpdate, []protocol.User{{ID: "u1"}, {ID: "u2"}})
	frame, err := protocol.Encode(model.KindRoomsUpdate, []protocol.Room{{ID: "r1", Name: "Lobby"}})
	s.Require().NoError(err)
	feed.BroadcastFrame(frame)

	users, rooms = feed.Snapshot(s.ctx)
	s.Len(users, 2)
	s.Require().Len(rooms, 1)
	s.Equal("Lobby", rooms[0].Name)
	s.Equal(2, feed.UserCount())
	s.Equal(1, feed.RoomCount())
}

func TestServeSSEStreamsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(testutil.NopLogger())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(w, r, hub)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, testutil.EventuallyTimeout, testutil.EventuallyTick)
	hub.BroadcastEvent("rooms", "<p>hi</p>")

	var got []string
	for len(got) < 4 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		got = append(got, line)
	}
	// connected payload and its terminator, then the broadcast
	assert.Equal(t, []string{"data: {\"status\":\"connected\"}\n", "\n", "event: rooms\n", "data: <p>hi</p>\n"}, got)
}

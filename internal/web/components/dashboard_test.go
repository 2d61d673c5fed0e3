package components

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/lobbysync/internal/protocol"
)

func render(t *testing.T, c templ.Component) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestDashboardWiresLiveUpdates(t *testing.T) {
	doc := render(t, Dashboard(nil, nil, "/dashboard/events?a=1&b=2"))

	page := doc.Find("main[hx-ext=sse]")
	require.Equal(t, 1, page.Length())
	url, _ := page.Attr("sse-connect")
	assert.Equal(t, "/dashboard/events?a=1&b=2", url)

	assert.Equal(t, 1, doc.Find("#"+UsersID+"-wrapper[sse-swap=users]").Length())
	assert.Equal(t, 1, doc.Find("#"+RoomsID+"-wrapper[sse-swap=rooms]").Length())
	assert.Equal(t, "No users online", doc.Find("#"+UsersID).Text())
	assert.Equal(t, "No open rooms", doc.Find("#"+RoomsID).Text())
}

func TestUserTableEscapesNames(t *testing.T) {
	doc := render(t, UserTable([]protocol.User{
		{ID: "alice", Username: "<b>Alice</b>", Status: "online", LastActive: 1704110400000},
	}))

	row := doc.Find("tr.user[data-user-id=alice]")
	require.Equal(t, 1, row.Length())
	assert.Equal(t, "<b>Alice</b>", row.Find("td.username").Text())
	assert.Equal(t, 0, row.Find("b").Length())
	assert.Contains(t, row.Text(), "2024-01-01T12:00:00Z")
}

func TestRoomTableShowsHostAndCapacity(t *testing.T) {
	doc := render(t, RoomTable([]protocol.Room{{
		ID:         "r1",
		Name:       "Friday Night",
		HostID:     "bob",
		Players:    []protocol.Player{{ID: "alice", Username: "Alice"}, {ID: "bob", Username: "Bob"}},
		Status:     "waiting",
		MaxPlayers: 4,
	}}))

	row := doc.Find("tr.room[data-room-id=r1]")
	require.Equal(t, 1, row.Length())
	assert.Equal(t, "Friday Night", row.Find(".name").Text())
	assert.Equal(t, "Bob", row.Find(".host").Text())
	assert.Equal(t, "2/4", row.Find(".capacity").Text())
	assert.Equal(t, "waiting", row.Find(".status").Text())
}

func TestHostNameFallsBackToID(t *testing.T) {
	assert.Equal(t, "ghost", hostName(protocol.Room{HostID: "ghost"}))
}

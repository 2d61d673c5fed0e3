// Package components holds the dashboard's HTML components. The components
// themselves are written in templ; run `task generate` after editing a
// .templ file.
package components

import (
	"strconv"
	"time"

	"github.com/mcoot/lobbysync/internal/protocol"
)

// Element IDs targeted by live updates
const (
	UsersID = "online-users"
	RoomsID = "open-rooms"
)

func hostName(r protocol.Room) string {
	for _, p := range r.Players {
		if p.ID == r.HostID {
			return p.Username
		}
	}
	return r.HostID
}

func capacity(r protocol.Room) string {
	return strconv.Itoa(len(r.Players)) + "/" + strconv.Itoa(r.MaxPlayers)
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

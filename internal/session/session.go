// Package session tracks which user, if any, is logged in on each live
// connection. Transport objects are never annotated directly; the
// connection ID is the only key.
package session

import (
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
)

// Map associates each connection with at most one user
type Map struct {
	mu       sync.RWMutex
	sessions map[model.ConnID]model.UserID
}

// NewMap creates an empty session map
func NewMap() *Map {
	return &Map{sessions: make(map[model.ConnID]model.UserID)}
}

// Bind records userID as the user on conn, replacing any previous binding
func (m *Map) Bind(conn model.ConnID, userID model.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[conn] = userID
}

// Resolve returns the user bound to conn
func (m *Map) Resolve(conn model.ConnID) (model.UserID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessions[conn]
	return id, ok
}

// Unbind forgets conn. No-op if nothing is bound.
func (m *Map) Unbind(conn model.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conn)
}

// Len returns the number of bound connections
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

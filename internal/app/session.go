package app

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

// SessionContext is what a connection knows about its own membership. The
// zero value means the connection has not joined any room.
type SessionContext struct {
	RoomID   domain.RoomID
	UserID   domain.UserID
	UserName string
}

func (c SessionContext) Joined() bool { return c.RoomID != "" }

// Session is the per-connection state. It is owned by the connection's read
// loop and never shared.
type Session struct {
	ID   core.SessionID
	Conn core.SignalConnection
	ctx  SessionContext
}

func NewSession(id core.SessionID, conn core.SignalConnection) *Session {
	return &Session{ID: id, Conn: conn}
}

func (s *Session) Context() SessionContext { return s.ctx }

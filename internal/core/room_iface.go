package core

import (
	"github.com/dkeye/CodeRoom/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Shed    int
	Dropped []MemberSession
}

func (p *PublishResult) Merge(o PublishResult) {
	p.SendTo += o.SendTo
	p.Shed += o.Shed
	p.Dropped = append(p.Dropped, o.Dropped...)
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"userId"`
	Username string        `json:"userName"`
	// JoinedAt orders members across instances (unix nanoseconds).
	JoinedAt int64 `json:"-"`
}

// Roster is the view of a room handed to callbacks that already run inside
// the room's critical section. It must not escape the callback.
type Roster interface {
	ID() domain.RoomID
	Len() int
	// Names lists display names in join order.
	Names() []string
	Members() []MemberDTO
	// Contains reports whether the connection currently holds a membership.
	Contains(sid SessionID) bool
	// Broadcast delivers to every member except from; an empty from reaches all.
	Broadcast(from SessionID, f Frame) PublishResult
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int

	// Admit inserts or replaces the member keyed by its user id and then runs
	// fn in the same critical section. It reports false once the room has
	// been retired; callers should fetch a fresh room.
	Admit(ms MemberSession, fn func(Roster)) (prev MemberSession, ok bool)
	// Remove drops uid. When sid is non-empty the member must still be bound
	// to that connection. fn runs only if members remain.
	Remove(uid domain.UserID, sid SessionID, fn func(Roster)) (MemberSession, bool)
	// View runs fn on a consistent roster; false if the room is retired.
	View(fn func(Roster)) bool
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

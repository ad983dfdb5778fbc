// Package protocol defines the closed set of events exchanged over the
// signalling socket. Every frame is a JSON object whose "type" field selects
// the event; payload fields are inlined next to it.
package protocol

import (
	"encoding/json"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
)

type Kind string

const (
	KindJoinRoom    Kind = "join-room"
	KindLeaveRoom   Kind = "leave-room"
	KindCodeChange  Kind = "code-change"
	KindInputChange Kind = "input-change"
	KindCursorMove  Kind = "cursor-move"
	KindPing        Kind = "ping"

	KindUserJoined   Kind = "user-joined"
	KindUserLeft     Kind = "user-left"
	KindRoomUsers    Kind = "room-users"
	KindCodeUpdate   Kind = "code-update"
	KindInputUpdate  Kind = "input-update"
	KindCursorUpdate Kind = "cursor-update"
	KindPong         Kind = "pong"
)

// Inbound is a client to server event. The set is closed: only types in
// this package implement it.
type Inbound interface {
	Kind() Kind
	inbound()
}

// Relayed is an inbound event that is fanned out to the rest of a room.
type Relayed interface {
	Inbound
	Room() domain.RoomID
	Origin() domain.UserID
	// Update builds the event delivered to the other members.
	Update() Outbound
}

// Outbound is a server to client event.
type Outbound interface {
	Kind() Kind
	// Lossy events may be shed by a congested connection.
	Lossy() bool
	outbound()
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type LeaveRoom struct{}

type CodeChange struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

type InputChange struct {
	RoomID string `json:"roomId"`
	Input  string `json:"input"`
	UserID string `json:"userId"`
}

type CursorMove struct {
	RoomID         string          `json:"roomId"`
	CursorPosition json.RawMessage `json:"cursorPosition"`
	UserID         string          `json:"userId"`
}

type Ping struct{}

func (JoinRoom) Kind() Kind    { return KindJoinRoom }
func (LeaveRoom) Kind() Kind   { return KindLeaveRoom }
func (CodeChange) Kind() Kind  { return KindCodeChange }
func (InputChange) Kind() Kind { return KindInputChange }
func (CursorMove) Kind() Kind  { return KindCursorMove }
func (Ping) Kind() Kind        { return KindPing }

func (JoinRoom) inbound()    {}
func (LeaveRoom) inbound()   {}
func (CodeChange) inbound()  {}
func (InputChange) inbound() {}
func (CursorMove) inbound()  {}
func (Ping) inbound()        {}

func (e CodeChange) Room() domain.RoomID  { return domain.RoomID(e.RoomID) }
func (e InputChange) Room() domain.RoomID { return domain.RoomID(e.RoomID) }
func (e CursorMove) Room() domain.RoomID  { return domain.RoomID(e.RoomID) }

func (e CodeChange) Origin() domain.UserID  { return domain.UserID(e.UserID) }
func (e InputChange) Origin() domain.UserID { return domain.UserID(e.UserID) }
func (e CursorMove) Origin() domain.UserID  { return domain.UserID(e.UserID) }

func (e CodeChange) Update() Outbound {
	return CodeUpdate{Code: e.Code, UserID: e.UserID}
}

func (e InputChange) Update() Outbound {
	return InputUpdate{Input: e.Input, UserID: e.UserID}
}

func (e CursorMove) Update() Outbound {
	return CursorUpdate{CursorPosition: e.CursorPosition, UserID: e.UserID}
}

type UserJoined struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type UserLeft struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// RoomUsers is the presence snapshot. Users holds display names in join
// order; Members carries the same entries with their ids since names are
// not unique.
type RoomUsers struct {
	Users   []string         `json:"users"`
	Members []core.MemberDTO `json:"members"`
}

type CodeUpdate struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

type InputUpdate struct {
	Input  string `json:"input"`
	UserID string `json:"userId"`
}

type CursorUpdate struct {
	CursorPosition json.RawMessage `json:"cursorPosition"`
	UserID         string          `json:"userId"`
}

type Pong struct{}

func (UserJoined) Kind() Kind   { return KindUserJoined }
func (UserLeft) Kind() Kind     { return KindUserLeft }
func (RoomUsers) Kind() Kind    { return KindRoomUsers }
func (CodeUpdate) Kind() Kind   { return KindCodeUpdate }
func (InputUpdate) Kind() Kind  { return KindInputUpdate }
func (CursorUpdate) Kind() Kind { return KindCursorUpdate }
func (Pong) Kind() Kind         { return KindPong }

func (UserJoined) Lossy() bool   { return false }
func (UserLeft) Lossy() bool     { return false }
func (RoomUsers) Lossy() bool    { return false }
func (CodeUpdate) Lossy() bool   { return false }
func (InputUpdate) Lossy() bool  { return true }
func (CursorUpdate) Lossy() bool { return true }
func (Pong) Lossy() bool         { return false }

func (UserJoined) outbound()   {}
func (UserLeft) outbound()     {}
func (RoomUsers) outbound()    {}
func (CodeUpdate) outbound()   {}
func (InputUpdate) outbound()  {}
func (CursorUpdate) outbound() {}
func (Pong) outbound()         {}

// Stamp fills in the originating user of a relayed event that arrived
// without one. Events that already name their user are returned unchanged.
func Stamp(ev Relayed, uid domain.UserID) Relayed {
	if ev.Origin() != "" {
		return ev
	}
	switch e := ev.(type) {
	case CodeChange:
		e.UserID = string(uid)
		return e
	case InputChange:
		e.UserID = string(uid)
		return e
	case CursorMove:
		e.UserID = string(uid)
		return e
	}
	return ev
}

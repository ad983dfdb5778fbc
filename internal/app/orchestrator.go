package app

import (
	"context"
	"fmt"

	"github.com/dkeye/CodeRoom/internal/bus"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Orchestrator is what the gateway talks to. Each method is called from the
// owning connection's read loop with that connection's Session.
type Orchestrator struct {
	Registry   *Registry
	Presence   Presence
	Relay      *Relay
	Reconciler *Reconciler
	Policy     Policy
	Cluster    *Cluster
}

// NewOrchestrator wires the components around one registry. cl may be nil
// for a standalone instance.
func NewOrchestrator(reg *Registry, policy Policy, cl bus.Cluster) *Orchestrator {
	cluster := &Cluster{Bus: cl}
	return &Orchestrator{
		Registry:   reg,
		Policy:     policy,
		Cluster:    cluster,
		Relay:      &Relay{Registry: reg, Policy: policy, Cluster: cluster},
		Reconciler: &Reconciler{Registry: reg, Policy: policy, Cluster: cluster},
	}
}

// Join admits the session's user into the requested room. A connection holds
// one membership at a time: joining somewhere else leaves the previous room
// first, while rejoining the same room as the same user refreshes it in place.
func (o *Orchestrator) Join(s *Session, req protocol.JoinRoom) error {
	roomID, err := domain.ParseRoomID(req.RoomID)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	user, err := domain.NewUser(req.UserID, req.UserName)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}

	if sc := s.ctx; sc.Joined() && (sc.RoomID != roomID || sc.UserID != user.ID) {
		log.Info().Str("module", "app.orchestrator").Str("sid", string(s.ID)).Str("from_room", string(sc.RoomID)).Msg("leaving previous room")
		o.Reconciler.Reconcile(s)
	}

	remote := o.Cluster.Remote(roomID)
	ms := core.NewMemberSession(s.ID, domain.NewMember(user, roomID), s.Conn)
	var (
		res  core.PublishResult
		self core.MemberDTO
	)
	prev := o.Registry.AddMember(roomID, ms, func(r core.Roster) {
		for _, m := range r.Members() {
			if m.ID == user.ID {
				self = m
			}
		}
		res = o.Presence.Welcome(r, ms, remote)
	})
	s.ctx = SessionContext{RoomID: roomID, UserID: user.ID, UserName: user.Username}

	if prev != nil && prev.SID() != s.ID {
		log.Info().Str("module", "app.orchestrator").Str("room", string(roomID)).Str("user", string(user.ID)).Str("old_sid", string(prev.SID())).Str("sid", string(s.ID)).Msg("membership superseded")
	}
	log.Info().Str("module", "app.orchestrator").Str("sid", string(s.ID)).Str("room", string(roomID)).Str("user", string(user.ID)).Msg("joined")
	enforce(o.Policy, roomID, res)
	o.Cluster.Joined(roomID, self)
	return nil
}

// Leave drops the session's membership but keeps the connection.
func (o *Orchestrator) Leave(s *Session) {
	o.Reconciler.Reconcile(s)
}

// Forward relays a document, input or cursor event.
func (o *Orchestrator) Forward(ctx context.Context, s *Session, ev protocol.Relayed) {
	o.Relay.Forward(ctx, s, ev)
}

// OnDisconnect runs exactly once per connection, after its transport closed.
func (o *Orchestrator) OnDisconnect(s *Session) {
	o.Reconciler.Reconcile(s)
}

// Deliver handles a message published by another instance.
func (o *Orchestrator) Deliver(m bus.Message) {
	switch m.Kind {
	case bus.KindPresence:
		remote := o.Cluster.Remote(m.Room)
		notice := core.Frame{Data: m.Payload}
		var res core.PublishResult
		if !o.Registry.With(m.Room, func(r core.Roster) { res = o.Presence.Relay(r, notice, remote) }) {
			return
		}
		metrics.EventsRelayed.WithLabelValues("presence", "bus").Inc()
		enforce(o.Policy, m.Room, res)
	default:
		o.Relay.Deliver(m)
	}
}

// Snapshot is the member list of room id across all instances.
func (o *Orchestrator) Snapshot(id domain.RoomID) (protocol.RoomUsers, bool) {
	remote := o.Cluster.Remote(id)
	var snap protocol.RoomUsers
	if o.Registry.With(id, func(r core.Roster) { snap = o.Presence.Snapshot(r, remote) }) {
		return snap, true
	}
	if len(remote) == 0 {
		return protocol.RoomUsers{}, false
	}
	return roomUsers(merge(nil, remote)), true
}

// MembersOf lists display names of room id across all instances; nil when
// nobody is in it.
func (o *Orchestrator) MembersOf(id domain.RoomID) []string {
	snap, ok := o.Snapshot(id)
	if !ok {
		return nil
	}
	return snap.Users
}

package app

import (
	"cmp"
	"slices"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Presence disseminates member lists. Its methods take a Roster and are
// meant to run inside the room's critical section, right after the
// membership change they announce. remote holds the room's members on other
// instances and is nil when running standalone.
type Presence struct{}

// Snapshot builds the room-users event for r.
func (Presence) Snapshot(r core.Roster, remote []core.MemberDTO) protocol.RoomUsers {
	return roomUsers(merge(r.Members(), remote))
}

// Broadcast sends the current member list to every connection in the room.
func (p Presence) Broadcast(r core.Roster, remote []core.MemberDTO) core.PublishResult {
	if r.Len() == 0 {
		return core.PublishResult{}
	}
	return p.send(r, "", p.Snapshot(r, remote))
}

// Welcome announces joiner to the others and then refreshes everyone's
// member list, joiner included.
func (p Presence) Welcome(r core.Roster, joiner core.MemberSession, remote []core.MemberDTO) core.PublishResult {
	u := joiner.Meta().User
	res := p.send(r, joiner.SID(), protocol.UserJoined{UserID: string(u.ID), UserName: u.Username})
	res.Merge(p.Broadcast(r, remote))
	return res
}

// Farewell tells the remaining members who left and what the room looks
// like now.
func (p Presence) Farewell(r core.Roster, leaver *domain.User, remote []core.MemberDTO) core.PublishResult {
	res := p.send(r, "", protocol.UserLeft{UserID: string(leaver.ID), UserName: leaver.Username})
	res.Merge(p.Broadcast(r, remote))
	return res
}

// Relay passes a notice announced by another instance to every local member
// and follows it with the merged member list.
func (p Presence) Relay(r core.Roster, notice core.Frame, remote []core.MemberDTO) core.PublishResult {
	res := r.Broadcast("", notice)
	res.Merge(p.Broadcast(r, remote))
	return res
}

func (Presence) send(r core.Roster, from core.SessionID, ev protocol.Outbound) core.PublishResult {
	f, err := protocol.Frame(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("room", string(r.ID())).Msg("encode")
		return core.PublishResult{}
	}
	return r.Broadcast(from, f)
}

func roomUsers(members []core.MemberDTO) protocol.RoomUsers {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return protocol.RoomUsers{Users: names, Members: members}
}

// merge appends remote members not present locally and orders the result by
// join time. A user present on both sides is listed once, as the local entry.
func merge(local, remote []core.MemberDTO) []core.MemberDTO {
	if len(remote) == 0 {
		return local
	}
	seen := make(map[domain.UserID]struct{}, len(local))
	for _, m := range local {
		seen[m.ID] = struct{}{}
	}
	out := slices.Clone(local)
	for _, m := range remote {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b core.MemberDTO) int { return cmp.Compare(a.JoinedAt, b.JoinedAt) })
	return out
}

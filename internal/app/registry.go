package app

import (
	"sync"

	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Registry is the room table: which users are present in which room.
// A room is listed iff it has at least one member.
//
// Lock order is room -> registry. Rooms call back into retire while holding
// their own lock, so the registry never takes a room lock under r.mu.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.RoomID]core.RoomService)}
}

// Ensure returns the room for id, creating an empty one if absent.
func (r *Registry) Ensure(id domain.RoomID) core.RoomService {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id, r.retire)
	r.rooms[id] = room
	metrics.RoomsActive.Inc()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room created")
	return room
}

// retire runs under the room's lock once its last member is gone.
func (r *Registry) retire(room core.RoomService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[room.ID()]; ok && cur == room {
		delete(r.rooms, room.ID())
		metrics.RoomsActive.Dec()
		log.Info().Str("module", "app.registry").Str("room", string(room.ID())).Msg("room deleted")
	}
}

// AddMember inserts or replaces ms in room id, creating the room when
// needed. then runs inside the room's critical section, after the insert.
func (r *Registry) AddMember(id domain.RoomID, ms core.MemberSession, then func(core.Roster)) core.MemberSession {
	for {
		// A room retired between Ensure and Admit is already out of the
		// table; the next Ensure creates a fresh one.
		prev, ok := r.Ensure(id).Admit(ms, then)
		if ok {
			metrics.MembershipChanges.WithLabelValues("join").Inc()
			return prev
		}
	}
}

// RemoveMember drops uid from room id regardless of which connection holds
// the membership. No-op if either does not exist.
func (r *Registry) RemoveMember(id domain.RoomID, uid domain.UserID) bool {
	_, ok := r.Release(id, uid, "", nil)
	return ok
}

// Release drops uid from room id if it is still bound to sid. then runs in
// the room's critical section when members remain.
func (r *Registry) Release(id domain.RoomID, uid domain.UserID, sid core.SessionID, then func(core.Roster)) (core.MemberSession, bool) {
	room, ok := r.Lookup(id)
	if !ok {
		return nil, false
	}
	ms, ok := room.Remove(uid, sid, then)
	if ok {
		metrics.MembershipChanges.WithLabelValues("leave").Inc()
	}
	return ms, ok
}

// MembersOf lists display names in join order; nil when the room is absent.
func (r *Registry) MembersOf(id domain.RoomID) []string {
	var names []string
	r.With(id, func(ro core.Roster) { names = ro.Names() })
	return names
}

// With runs fn on a consistent view of room id. It reports false when the
// room does not exist.
func (r *Registry) With(id domain.RoomID, fn func(core.Roster)) bool {
	room, ok := r.Lookup(id)
	if !ok {
		return false
	}
	return room.View(fn)
}

func (r *Registry) Lookup(id domain.RoomID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) List() []core.RoomInfo {
	r.mu.RLock()
	rooms := make([]core.RoomService, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		n := room.MemberCount()
		if n == 0 {
			continue
		}
		out = append(out, core.RoomInfo{ID: room.ID(), MemberCount: n})
	}
	return out
}

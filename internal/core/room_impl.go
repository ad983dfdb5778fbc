package core

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type slot struct {
	ms     MemberSession
	seq    uint64
	joined int64
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id      domain.RoomID
	mu      sync.RWMutex
	byUser  map[domain.UserID]*slot
	seq     uint64
	retired bool
	// onEmpty runs under mu, right after the room retires.
	onEmpty func(RoomService)
}

func NewRoomService(id domain.RoomID, onEmpty func(RoomService)) RoomService {
	return &roomImpl{
		id:      id,
		byUser:  make(map[domain.UserID]*slot),
		onEmpty: onEmpty,
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *roomImpl) Admit(ms MemberSession, fn func(Roster)) (MemberSession, bool) {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return nil, false
	}
	var prev MemberSession
	if s, ok := r.byUser[u]; ok {
		// Same user again: the entry is replaced but keeps its place in the
		// join order.
		prev = s.ms
		s.ms = ms
	} else {
		r.seq++
		r.byUser[u] = &slot{ms: ms, seq: r.seq, joined: time.Now().UnixNano()}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(ms.SID())).Str("user", string(u)).Msg("member added")
	if fn != nil {
		fn(roster{r})
	}
	return prev, true
}

func (r *roomImpl) Remove(uid domain.UserID, sid SessionID, fn func(Roster)) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[uid]
	if !ok || r.retired {
		return nil, false
	}
	if sid != "" && s.ms.SID() != sid {
		return nil, false
	}
	delete(r.byUser, uid)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(s.ms.SID())).Str("user", string(uid)).Msg("member removed")

	if len(r.byUser) == 0 {
		r.retired = true
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Msg("room retired")
		if r.onEmpty != nil {
			r.onEmpty(r)
		}
		return s.ms, true
	}
	if fn != nil {
		fn(roster{r})
	}
	return s.ms, true
}

func (r *roomImpl) View(fn func(Roster)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.retired {
		return false
	}
	fn(roster{r})
	return true
}

// roster reads roomImpl without locking; the caller holds r.mu.
type roster struct{ r *roomImpl }

func (v roster) ID() domain.RoomID { return v.r.id }
func (v roster) Len() int          { return len(v.r.byUser) }

func (v roster) ordered() []*slot {
	out := make([]*slot, 0, len(v.r.byUser))
	for _, s := range v.r.byUser {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *slot) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}

func (v roster) Names() []string {
	slots := v.ordered()
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.ms.Meta().User.Username)
	}
	return out
}

func (v roster) Members() []MemberDTO {
	slots := v.ordered()
	out := make([]MemberDTO, 0, len(slots))
	for _, s := range slots {
		u := s.ms.Meta().User
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username, JoinedAt: s.joined})
	}
	return out
}

func (v roster) Contains(sid SessionID) bool {
	for _, s := range v.r.byUser {
		if s.ms.SID() == sid {
			return true
		}
	}
	return false
}

func (v roster) Broadcast(from SessionID, f Frame) PublishResult {
	res := PublishResult{}
	for _, s := range v.ordered() {
		if from != "" && s.ms.SID() == from {
			continue
		}
		deliver(s.ms, f, &res)
	}
	log.Debug().Str("module", "core.room").Str("room", string(v.r.id)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("shed", res.Shed).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func deliver(ms MemberSession, f Frame, res *PublishResult) {
	err := ms.Signal().TrySend(f)
	switch {
	case err == nil:
		res.SendTo++
	case errors.Is(err, ErrShed):
		res.Shed++
	default:
		res.Dropped = append(res.Dropped, ms)
	}
}

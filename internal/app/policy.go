package app

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/rs/zerolog/log"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

type Policy interface {
	OnBackPressure(room domain.RoomID, member core.MemberSession) BackpressureAction
}

// SimplePolicy kicks any member whose outbound queue overflowed. Closing the
// connection ends its read loop, which runs the normal disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room domain.RoomID, member core.MemberSession) BackpressureAction {
	return KickMember
}

// enforce applies p to the outcome of a fan-out. It must be called outside
// the room's critical section.
func enforce(p Policy, room domain.RoomID, res core.PublishResult) {
	if res.Shed > 0 {
		metrics.FramesShed.Add(float64(res.Shed))
	}
	if p == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch p.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.policy").Str("room", string(room)).Str("sid", string(slow.SID())).Msg("kicking slow member")
			metrics.MembersKicked.Inc()
			slow.Signal().Close()
		case NoAction:
		}
	}
}

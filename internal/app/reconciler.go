package app

import (
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Reconciler removes a connection's membership when it leaves or goes away.
// Graceful and abrupt closes take the same path.
type Reconciler struct {
	Registry *Registry
	Presence Presence
	Policy   Policy
	Cluster  *Cluster
}

// Reconcile releases the session's membership, announces the departure to
// whoever is left and clears the session context. Sessions that never
// joined are a no-op. A membership already taken over by a newer connection
// of the same user is left alone.
func (rc *Reconciler) Reconcile(s *Session) {
	sc := s.ctx
	if !sc.Joined() {
		return
	}
	s.ctx = SessionContext{}

	leaver := &domain.User{ID: sc.UserID, Username: sc.UserName}
	remote := rc.Cluster.Remote(sc.RoomID)
	var res core.PublishResult
	_, ok := rc.Registry.Release(sc.RoomID, sc.UserID, s.ID, func(r core.Roster) {
		res = rc.Presence.Farewell(r, leaver, remote)
	})
	if !ok {
		log.Debug().Str("module", "app.reconciler").Str("sid", string(s.ID)).Str("room", string(sc.RoomID)).Msg("membership already gone")
		return
	}
	log.Info().Str("module", "app.reconciler").Str("sid", string(s.ID)).Str("room", string(sc.RoomID)).Str("user", string(sc.UserID)).Msg("member left")
	enforce(rc.Policy, sc.RoomID, res)
	rc.Cluster.Left(sc.RoomID, leaver)
}

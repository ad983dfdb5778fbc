package signal

import (
	"github.com/dkeye/CodeRoom/internal/app"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handlePing(sess *app.Session) {
	ctl.send(sess, protocol.Pong{})
}

// handleJoin admits the connection. Invalid requests are dropped without a
// reply; the client keeps waiting for a room-users that never comes.
func (ctl *SignalWSController) handleJoin(sess *app.Session, req protocol.JoinRoom) {
	if err := ctl.Orch.Join(sess, req); err != nil {
		metrics.EventsDiscarded.WithLabelValues("invalid_join").Inc()
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("join rejected")
	}
}

// handleLeave drops the current membership; the connection stays open.
func (ctl *SignalWSController) handleLeave(sess *app.Session) {
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("leave")
	ctl.Orch.Leave(sess)
}

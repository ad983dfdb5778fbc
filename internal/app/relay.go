package app

import (
	"context"

	"github.com/dkeye/CodeRoom/internal/bus"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay fans document, input and cursor events out to the other members of
// a room. Payloads are forwarded as is; concurrent edits are not merged and
// the last update a peer receives wins.
type Relay struct {
	Registry *Registry
	Policy   Policy
	Cluster  *Cluster
}

// Forward relays ev from the session's connection. The event is dropped
// unless that connection is currently a member of the room ev names.
func (r *Relay) Forward(ctx context.Context, s *Session, ev protocol.Relayed) {
	sc := s.Context()
	if !sc.Joined() {
		metrics.EventsDiscarded.WithLabelValues("not_joined").Inc()
		return
	}
	ev = protocol.Stamp(ev, sc.UserID)
	f, err := protocol.Frame(ev.Update())
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("sid", string(s.ID)).Msg("encode")
		return
	}

	member := false
	var res core.PublishResult
	r.Registry.With(ev.Room(), func(ro core.Roster) {
		if !ro.Contains(s.ID) {
			return
		}
		member = true
		res = ro.Broadcast(s.ID, f)
	})
	if !member {
		metrics.EventsDiscarded.WithLabelValues("not_member").Inc()
		log.Debug().Str("module", "app.relay").Str("sid", string(s.ID)).Str("room", string(ev.Room())).Str("kind", string(ev.Kind())).Msg("sender not in room, dropped")
		return
	}
	metrics.EventsRelayed.WithLabelValues(string(ev.Kind()), "local").Inc()
	enforce(r.Policy, ev.Room(), res)

	r.Cluster.Publish(ctx, ev.Room(), f)
}

// Deliver hands a frame relayed by another instance to every local member
// of its room. The sender lives elsewhere, so nobody here is skipped.
func (r *Relay) Deliver(m bus.Message) {
	f := core.Frame{Data: m.Payload, Lossy: m.Lossy}
	var res core.PublishResult
	if !r.Registry.With(m.Room, func(ro core.Roster) { res = ro.Broadcast("", f) }) {
		return
	}
	metrics.EventsRelayed.WithLabelValues("remote", "bus").Inc()
	enforce(r.Policy, m.Room, res)
}

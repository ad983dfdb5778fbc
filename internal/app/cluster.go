package app

import (
	"context"
	"time"

	"github.com/dkeye/CodeRoom/internal/bus"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/rs/zerolog/log"
)

// clusterTimeout bounds every bus call made on a connection's read loop.
const clusterTimeout = 2 * time.Second

// Cluster shares membership and relayed frames with the other instances on
// the bus. With a nil Bus the instance runs standalone and every method is
// a no-op.
type Cluster struct {
	Bus bus.Cluster
}

func (c *Cluster) enabled() bool { return c != nil && c.Bus != nil }

// Remote lists the members of room held by other instances. Bus failures
// degrade to the local view.
func (c *Cluster) Remote(room domain.RoomID) []core.MemberDTO {
	if !c.enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), clusterTimeout)
	defer cancel()
	entries, err := c.Bus.Remote(ctx, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.cluster").Str("room", string(room)).Msg("remote members")
		return nil
	}
	out := make([]core.MemberDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, core.MemberDTO{ID: e.UserID, Username: e.UserName, JoinedAt: e.JoinedAt})
	}
	return out
}

// Joined records m and tells the other instances about it.
func (c *Cluster) Joined(room domain.RoomID, m core.MemberDTO) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), clusterTimeout)
	defer cancel()
	if err := c.Bus.Put(ctx, room, bus.Entry{UserID: m.ID, UserName: m.Username, JoinedAt: m.JoinedAt}); err != nil {
		log.Warn().Err(err).Str("module", "app.cluster").Str("room", string(room)).Str("user", string(m.ID)).Msg("put member")
	}
	c.announce(ctx, room, protocol.UserJoined{UserID: string(m.ID), UserName: m.Username})
}

// Left removes the user from the directory and tells the other instances.
func (c *Cluster) Left(room domain.RoomID, u *domain.User) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), clusterTimeout)
	defer cancel()
	if err := c.Bus.Drop(ctx, room, u.ID); err != nil {
		log.Warn().Err(err).Str("module", "app.cluster").Str("room", string(room)).Str("user", string(u.ID)).Msg("drop member")
	}
	c.announce(ctx, room, protocol.UserLeft{UserID: string(u.ID), UserName: u.Username})
}

// Publish forwards a relayed frame to the other instances.
func (c *Cluster) Publish(ctx context.Context, room domain.RoomID, f core.Frame) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, clusterTimeout)
	defer cancel()
	m := bus.Message{Kind: bus.KindRelay, Room: room, Payload: f.Data, Lossy: f.Lossy}
	if err := c.Bus.Publish(ctx, m); err != nil {
		log.Warn().Err(err).Str("module", "app.cluster").Str("room", string(room)).Msg("bus publish")
	}
}

func (c *Cluster) announce(ctx context.Context, room domain.RoomID, ev protocol.Outbound) {
	f, err := protocol.Frame(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.cluster").Msg("encode")
		return
	}
	if err := c.Bus.Publish(ctx, bus.Message{Kind: bus.KindPresence, Room: room, Payload: f.Data}); err != nil {
		log.Warn().Err(err).Str("module", "app.cluster").Str("room", string(room)).Msg("bus announce")
	}
}

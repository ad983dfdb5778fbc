package signal

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/CodeRoom/internal/app"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/dkeye/CodeRoom/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(ctl.cfg.WriteWait))
			return
		case <-c.done:
			return
		case <-c.out.ready:
			for _, f := range c.out.drain() {
				if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteWait)); err != nil {
					log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, f.Data); err != nil {
					log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
					return
				}
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the session. Its exit is the single disconnect path for the
// connection, whichever side closed it.
func (ctl *SignalWSController) readPump(ctx context.Context, sess *app.Session, c *WsSignalConn) {
	defer func() {
		ctl.Orch.OnDisconnect(sess)
		c.Close()
		metrics.ConnectionsActive.Dec()
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.cfg.PongWait))
		ctl.handleSignal(ctx, sess, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sess *app.Session, data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownType) {
			reason = "unknown_type"
		}
		metrics.EventsDiscarded.WithLabelValues(reason).Inc()
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("bad event")
		return
	}

	switch e := ev.(type) {
	case protocol.JoinRoom:
		ctl.handleJoin(sess, e)
	case protocol.LeaveRoom:
		ctl.handleLeave(sess)
	case protocol.Ping:
		ctl.handlePing(sess)
	case protocol.Relayed:
		ctl.Orch.Forward(ctx, sess, e)
	default:
		log.Warn().Str("module", "signal").Str("type", string(ev.Kind())).Msg("unhandled event")
	}
}

func (ctl *SignalWSController) send(sess *app.Session, ev protocol.Outbound) {
	f, err := protocol.Frame(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send encode")
		return
	}
	if err := sess.Conn.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Str("type", string(ev.Kind())).Msg("send")
	}
}

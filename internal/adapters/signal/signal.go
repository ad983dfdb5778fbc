package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/dkeye/CodeRoom/internal/app"
	"github.com/dkeye/CodeRoom/internal/config"
	"github.com/dkeye/CodeRoom/internal/core"
	"github.com/dkeye/CodeRoom/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type SignalWSController struct {
	Orch     *app.Orchestrator
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewSignalWSController builds the websocket gateway. allowOrigin decides
// browser upgrades; requests without an Origin header always pass.
func NewSignalWSController(orch *app.Orchestrator, cfg *config.Config, allowOrigin func(*http.Request) bool) *SignalWSController {
	return &SignalWSController{
		Orch: orch,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if r.Header.Get("Origin") == "" {
					return true
				}
				return allowOrigin(r)
			},
		},
	}
}

// WsSignalConn is the core.SignalConnection for one websocket.
type WsSignalConn struct {
	conn *websocket.Conn
	out  *outbox

	once sync.Once
	done chan struct{}
}

func newWsSignalConn(ws *websocket.Conn, buffer, maxShed int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		out:  newOutbox(buffer, maxShed),
		done: make(chan struct{}),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	return c.out.push(f)
}

func (c *WsSignalConn) Close() {
	c.once.Do(func() {
		c.out.close()
		close(c.done)
		_ = c.conn.Close()
	})
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", token).Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := newWsSignalConn(ws, ctl.cfg.SendBuffer, ctl.cfg.MaxShed)
	sess := app.NewSession(sid, conn)
	metrics.ConnectionsActive.Inc()
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", token).Str("remote", c.ClientIP()).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sess, conn)
}

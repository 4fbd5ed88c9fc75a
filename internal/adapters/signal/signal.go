package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/emberchat/broadcast/internal/app"
	"github.com/emberchat/broadcast/internal/app/orch"
	"github.com/emberchat/broadcast/internal/config"
	"github.com/emberchat/broadcast/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller owns the websocket side: presence, event delivery and the
// signaling relay entry point.
type Controller struct {
	Orch     *orch.Orchestrator
	Relay    *app.Relay
	Presence *Presence
	Cfg      *config.Config
}

func NewController(o *orch.Orchestrator, relay *app.Relay, presence *Presence, cfg *config.Config) *Controller {
	return &Controller{Orch: o, Relay: relay, Presence: presence, Cfg: cfg}
}

// WsSignalConn is one user's ordered transport channel. TrySend marshals
// and enqueues without blocking; a full buffer is backpressure, reported
// to the caller and never waited out.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan []byte, 32)}
}

func (c *WsSignalConn) TrySend(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection and registers the user with the
// roster. Identity (id, display name, global role) is resolved upstream;
// here it arrives on the gin context.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	userID := domain.UserID(c.GetString("user_id"))
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}

	username := c.Query("name")
	if username == "" {
		username = "guest"
	}
	user := domain.User{
		ID:       userID,
		Username: username,
		Role:     domain.ParseRole(c.GetString("user_role")),
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := newWsSignalConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	if prevRoom, ok := ctl.Presence.Connect(user, conn, cancel); ok {
		ctl.Orch.Disconnect(prevRoom, userID)
	}

	log.Info().Str("module", "signal").Str("user", string(userID)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, userID, conn)
}

// deliverEvents forwards hub events for the joined room onto the user's
// connection until the subscription is cancelled.
func (ctl *Controller) deliverEvents(events <-chan app.Event, conn *WsSignalConn) {
	for ev := range events {
		if err := conn.TrySend(ev); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("kind", string(ev.Kind)).Msg("event delivery failed")
		}
	}
}

func (ctl *Controller) sendJSON(c *WsSignalConn, v any) {
	if err := c.TrySend(v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}

func (ctl *Controller) sendError(c *WsSignalConn, msg string) {
	ctl.sendJSON(c, map[string]any{"type": "error", "error": msg})
}

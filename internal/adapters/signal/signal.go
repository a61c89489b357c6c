package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/adapters/rtc"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	SendBuffer int
	WebRTC     webrtc.Configuration
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  64 << 10,
		PingPeriod: 30 * time.Second,
		PongWait:   60 * time.Second,
		SendBuffer: 64,
		WebRTC:     rtc.DefaultWebRTCConfig(),
	}
}

// SignalWSController owns the websocket side of the event channel. Every
// connection is one participant; its id is assigned here.
type SignalWSController struct {
	Coord   *orch.Coordinator
	Hub     *Hub
	Limiter *StartRateLimiter
	opts    Options
}

func NewSignalWSController(coord *orch.Coordinator, hub *Hub, limiter *StartRateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{Coord: coord, Hub: hub, Limiter: limiter, opts: opts}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// client is the per-connection state kept by the controller.
type client struct {
	pid  domain.ParticipantID
	conn *WsSignalConn

	mu    sync.Mutex
	media *rtc.WebRTCConnection
}

func (cl *client) setMedia(m *rtc.WebRTCConnection) (old *rtc.WebRTCConnection) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	old, cl.media = cl.media, m
	return old
}

// clearMedia forgets m if it is still the current connection.
func (cl *client) clearMedia(m *rtc.WebRTCConnection) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.media == m {
		cl.media = nil
	}
}

func (cl *client) currentMedia() *rtc.WebRTCConnection {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.media
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	cl := &client{
		pid: domain.NewParticipantID(),
		conn: &WsSignalConn{
			conn: ws,
			send: make(chan core.Frame, ctl.opts.SendBuffer),
		},
	}
	log.Info().Str("module", "signal").Str("pid", string(cl.pid)).Str("client_token", c.GetString(ClientTokenKey)).Msg("new WS connection")
	ctl.Hub.Register(cl.pid, cl.conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cl.conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, cl)
	}()
}

// ClientTokenKey is the gin context key holding the browser's client token.
const ClientTokenKey = "client_token"

// disconnect turns a transport exit into an ordinary leave.
// leaveTimeout bounds how long a closing connection waits for room in the
// coordinator inbox.
const leaveTimeout = 5 * time.Second

func (ctl *SignalWSController) disconnect(ctx context.Context, cl *client) {
	ctl.Hub.Unregister(cl.pid, cl.conn)
	if m := cl.setMedia(nil); m != nil {
		m.Close()
	}
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(cl.pid)
	}
	ctx, cancel := context.WithTimeout(ctx, leaveTimeout)
	defer cancel()
	if err := ctl.Coord.Submit(ctx, orch.Leave{ID: cl.pid, Reason: orch.LeaveDisconnect}); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("submit leave")
	}
}

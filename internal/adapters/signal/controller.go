// Package signal is the WebSocket signaling adapter: it authenticates
// handshakes, walks each connection through the
// Connecting/Authenticated/Joined/Active/Closed lifecycle and
// translates wire messages into orchestrator calls.
package signal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/app"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/auth"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/config"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

// Close codes distinguishing handshake rejection causes.
const (
	CloseCodeBadRequest = 4400
	CloseCodeAuthFailed = 4401
	CloseCodeRoomFull   = 4429
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Orch     *app.Orchestrator
	Verifier *auth.Verifier
	Notifier core.Notifier

	cookieName  string
	readLimit   int64
	pingPeriod  time.Duration
	msgLimit    int
	msgInterval time.Duration
}

func NewController(orch *app.Orchestrator, verifier *auth.Verifier, cfg *config.Config) *Controller {
	return &Controller{
		Orch:        orch,
		Verifier:    verifier,
		cookieName:  cfg.AuthCookie,
		readLimit:   cfg.ReadLimit,
		pingPeriod:  cfg.PingPeriod,
		msgLimit:    cfg.MessageRateLimit,
		msgInterval: time.Second,
	}
}

// session is the per-connection state the dispatcher operates on.
type session struct {
	room    *core.Room
	peer    *core.Peer
	conn    *WsSignalConn
	limiter *rateLimiter
}

// HandleSignal runs the full connection lifecycle. It returns when the
// socket is gone and the peer session is torn down.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	conn := newConn(ws)

	// Authenticated: the call token rides a cookie on the handshake
	// request. Any failure closes before room state is touched.
	token, err := c.Cookie(ctl.cookieName)
	if err != nil {
		conn.closeWithCode(CloseCodeAuthFailed, "missing call token")
		return
	}
	identity, err := ctl.Verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("token rejected")
		conn.closeWithCode(CloseCodeAuthFailed, "invalid call token")
		return
	}

	roomID, err := domain.ParseRoomID(c.Query("room"))
	if err != nil {
		conn.closeWithCode(CloseCodeBadRequest, err.Error())
		return
	}

	// Joined.
	room, peer, err := ctl.Orch.Join(ctx, roomID, identity, conn)
	if err != nil {
		if errors.Is(err, core.ErrRoomFull) {
			conn.closeWithCode(CloseCodeRoomFull, "room full")
		} else {
			log.Error().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("join failed")
			conn.closeWithCode(websocket.CloseInternalServerErr, "join failed")
		}
		return
	}
	log.Info().Str("module", "signal").Str("room", string(room.ID)).Str("peer", string(peer.ID)).Str("user", string(identity.UserID)).Msg("peer joined")

	s := &session{
		room:    room,
		peer:    peer,
		conn:    conn,
		limiter: newRateLimiter(ctl.msgLimit, ctl.msgInterval),
	}

	// Welcome and join notification go out only after registration.
	ctl.Notifier.Send(conn, welcomeMessage{
		Type:            "welcome",
		PeerID:          peer.ID,
		RTPCapabilities: room.Router().Capabilities(),
		Peers:           room.PeersInfo(peer.ID),
	})
	ctl.broadcast(s, peerJoinedMessage{Type: "peer-joined", Peer: peer.Info()})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, s)
}

// closeSession is the Closed state: release every owned resource,
// notify peers whose consumers were cascaded away, and announce the
// departure.
func (ctl *Controller) closeSession(s *session) {
	cascades, left := ctl.Orch.Leave(s.room, s.peer)
	for _, cc := range cascades {
		ctl.Notifier.Send(cc.Peer.Conn(), consumerClosedMessage{Type: "consumer-closed", ConsumerID: cc.ConsumerID})
	}
	if left {
		ctl.Notifier.Broadcast(s.room, s.peer.ID, peerLeftMessage{Type: "peer-left", PeerID: s.peer.ID})
	}
	s.conn.Close()
	log.Info().Str("module", "signal").Str("room", string(s.room.ID)).Str("peer", string(s.peer.ID)).Msg("peer left")
}

// broadcast fans a message out to the other peers and applies the
// backpressure policy to any that could not keep up.
func (ctl *Controller) broadcast(s *session, v any) {
	slow := ctl.Notifier.Broadcast(s.room, s.peer.ID, v)
	for _, p := range slow {
		if ctl.Orch.Policy != nil && ctl.Orch.Policy.OnBackpressure(s.room, p) == core.KickPeer {
			log.Warn().Str("module", "signal").Str("peer", string(p.ID)).Msg("kicking slow peer")
			// Closing the socket makes the peer's own read pump run
			// the standard teardown.
			p.Conn().Close()
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, app.ErrTransportNotFound):
		return "transport-not-found"
	case errors.Is(err, app.ErrProducerNotFound):
		return "producer-not-found"
	case errors.Is(err, app.ErrConsumerNotFound):
		return "consumer-not-found"
	case errors.Is(err, app.ErrCannotConsume):
		return "cannot-consume"
	case errors.Is(err, app.ErrNoRecvTransport):
		return "no-recv-transport"
	case errors.Is(err, app.ErrRecvTransportExists):
		return "recv-transport-exists"
	case errors.Is(err, app.ErrInvalidDirection):
		return "bad-request"
	case errors.Is(err, app.ErrPeerGone):
		return "peer-gone"
	default:
		return "engine-error"
	}
}

// sendError reports a failed operation to the requesting peer only.
func (ctl *Controller) sendError(s *session, ref string, err error) {
	ctl.Notifier.Send(s.conn, errorMessage{
		Type:   "error",
		Code:   errorCode(err),
		Reason: err.Error(),
		Ref:    ref,
	})
}

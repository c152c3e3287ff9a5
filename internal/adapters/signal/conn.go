package signal

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
)

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 32
)

// WsSignalConn wraps one websocket with a buffered outbound queue so a
// slow reader never blocks the room that notifies it.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendQueueSize),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
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
	_ = c.conn.Close()
	c.mu.Unlock()
}

// closeWithCode sends a close frame before tearing the socket down, so
// the client can distinguish rejection causes.
func (c *WsSignalConn) closeWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, s *session) {
	defer func() {
		log.Info().Str("module", "signal").Str("peer", string(s.peer.ID)).Msg("readPump closing")
		ctl.closeSession(s)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("peer", string(s.peer.ID)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(ctx, s, data)
		}
	}
}

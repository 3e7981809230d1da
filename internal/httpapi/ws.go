package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// maxMessageBytes caps one inbound frame. Base64 screenshots are the
// largest legitimate payload and stay well under this.
const maxMessageBytes = 8 << 20

// wsConn adapts a gorilla connection to the gateway's Conn interface.
// gorilla allows only one concurrent writer, so sends are serialized here;
// the read loop stays single-goroutine in handleWS.
type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *wsConn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// handleWS upgrades the request and runs the connection's read loop. Each
// connection gets its own gateway session; messages are handled in arrival
// order on this goroutine.
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	conn.SetReadLimit(maxMessageBytes)
	wc := newWSConn(conn)
	session := a.gateway.NewSession(wc)
	a.logger.Debug("websocket connection accepted", "remote", r.RemoteAddr)

	defer func() {
		wc.markClosed()
		_ = conn.Close()
		// The request context is gone once the handler returns; close-out
		// bookkeeping gets its own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		session.Close(ctx)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("websocket read ended", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		session.HandleMessage(r.Context(), data)
	}
}

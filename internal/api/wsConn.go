package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// wsConn adapts a gorilla connection to registry.Sender. All writes funnel
// through the write pump; Send only hands the payload to the pump's queue,
// so one slow peer stalls nothing but its own queue.
type wsConn struct {
	socket    *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	writeWait  time.Duration
	pingPeriod time.Duration
}

func newWSConn(socket *websocket.Conn, writeWait, pingPeriod time.Duration) *wsConn {
	return &wsConn{
		socket:     socket,
		send:       make(chan []byte, 32),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		pingPeriod: pingPeriod,
	}
}

func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump owns the socket's write side: queued payloads, periodic pings,
// and the close frame on shutdown. Runs until Close or a write error.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeWait))
			c.socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

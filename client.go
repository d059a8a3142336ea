// client.go
// The read goroutine decodes nothing; it hands raw frames to the manager loop.
// The write goroutine drains the client's send channel back to the browser
// and keeps the connection alive with pings.
// Separating read/write avoids head-of-line blocking when a browser is slow.

package main

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

func (c *Client) read() {
	m := c.manager
	defer func() {
		m.Unregister(c)
		c.socket.Close()
	}()

	pongWait := m.opts.PingInterval * 2
	c.socket.SetReadLimit(m.opts.MaxMessageBytes)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Debug("read failed", "client", c.id, "error", err)
			}
			return
		}
		if !m.receive(c, message) {
			return
		}
	}
}

func (c *Client) write() {
	m := c.manager
	ticker := time.NewTicker(m.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					m.log.Debug("write failed", "client", c.id, "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

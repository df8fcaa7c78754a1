package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// Conn is one live connection tracked by the hub. WorkerID is empty for
// unauthenticated observers.
type Conn struct {
	WorkerID string

	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

// ReadMessage blocks until the next frame arrives or the connection drops.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// writePump drains the outbound queue onto the wire. It owns all writes to
// the underlying connection and closes it when the queue is closed.
func (c *Conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Conn) closeSend() {
	c.once.Do(func() {
		close(c.send)
	})
}

// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// ErrMalformed marks a frame that decoded as garbage. Callers keep the
// connection open and drop the frame.
var ErrMalformed = errors.New("malformed envelope")

type Connection interface {
	Send(env *Envelope) error
	ReadEnvelope() (*Envelope, error)
	Open() bool
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	closed    atomic.Bool
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// Send marshals the envelope as one JSON text frame. Browser clients read the
// same shape, so there is no binary packet header here.
func (c *WSConnection) Send(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed.Store(true)
		return err
	}
	return nil
}

// ReadEnvelope blocks for the next frame. A socket-level error marks the
// connection closed and is returned as-is; a JSON decode failure returns
// ErrMalformed and the connection stays usable.
func (c *WSConnection) ReadEnvelope() (*Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.closed.Store(true)
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}
	return &env, nil
}

func (c *WSConnection) Open() bool {
	return !c.closed.Load()
}

func (c *WSConnection) Close() error {
	c.closed.Store(true)
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

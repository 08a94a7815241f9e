package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/driftsync/driftsync/internal/core/protocol"
)

var _ protocol.Connection = (*Connection)(nil)

// Connection wraps a client-side websocket and presents the framed
// Connection interface. Websocket messages are already frame-delimited, so
// Send and Receive map one-to-one onto messages.
type Connection struct {
	id     string
	conn   *websocket.Conn
	config protocol.Config
	closed int32

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

func newConnection(conn *websocket.Conn, config protocol.Config) *Connection {
	return &Connection{
		id:     uuid.New().String(),
		conn:   conn,
		config: config,
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) Send(data []byte) error {
	if c.IsClosed() {
		return protocol.ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "write websocket message")
	}
	return nil
}

func (c *Connection) Receive() ([]byte, error) {
	if c.IsClosed() {
		return nil, protocol.ErrConnectionClosed
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "read websocket message")
	}
	if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
		return nil, errors.Errorf("unsupported websocket message type %d", messageType)
	}
	if c.config.MaxFrameSize > 0 && len(data) > c.config.MaxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", len(data))
	}
	return data, nil
}

func (c *Connection) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

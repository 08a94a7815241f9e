package quic

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/driftsync/driftsync/internal/core/protocol"
)

var _ protocol.Connection = (*Connection)(nil)

// Connection carries envelopes over a single bidirectional QUIC stream,
// each frame prefixed with a big-endian uint32 length.
type Connection struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	config protocol.Config
	closed int32

	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newConnection(ctx context.Context, conn *quic.Conn, config protocol.Config) (*Connection, error) {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "open stream")
	}
	return &Connection{
		id:     uuid.New().String(),
		conn:   conn,
		stream: stream,
		config: config,
	}, nil
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
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := c.stream.Write(header[:]); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if _, err := c.stream.Write(data); err != nil {
		return errors.Wrap(err, "write frame body")
	}
	return nil
}

func (c *Connection) Receive() ([]byte, error) {
	if c.IsClosed() {
		return nil, protocol.ErrConnectionClosed
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	var header [4]byte
	if _, err := io.ReadFull(c.stream, header[:]); err != nil {
		return nil, errors.Wrap(err, "read frame header")
	}
	length := binary.BigEndian.Uint32(header[:])
	if c.config.MaxFrameSize > 0 && int(length) > c.config.MaxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.stream, data); err != nil {
		return nil, errors.Wrap(err, "read frame body")
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
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "client closing")
}

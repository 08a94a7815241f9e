package protocol

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// ErrConnectionClosed is returned by Send/Receive after Close.
var ErrConnectionClosed = errors.New("protocol: connection is closed")

// Connection is a framed, bidirectional link to the server. Send and Receive
// move whole envelope frames; framing is the transport's concern.
type Connection interface {
	ID() string
	RemoteAddr() net.Addr

	Send(data []byte) error
	Receive() ([]byte, error)

	IsClosed() bool
	Close() error
}

// Transport dials connections over one concrete wire protocol.
type Transport interface {
	Dial(ctx context.Context, addr string) (Connection, error)
	Type() string
}

// Config holds transport-level knobs shared by all implementations.
type Config struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxFrameSize bounds a single received frame.
	MaxFrameSize int
}

// DefaultConfig returns conservative transport settings.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxFrameSize: 1024 * 1024,
	}
}

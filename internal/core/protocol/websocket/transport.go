package websocket

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

// Transport dials websocket connections to the sync server.
type Transport struct {
	config protocol.Config
	logger log.Log
}

func NewTransport(config protocol.Config, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Nop{}
	}
	return &Transport{
		config: config,
		logger: logger.With(log.String("transport", "websocket")),
	}
}

func (t *Transport) Type() string { return "websocket" }

// Dial connects to a ws:// or wss:// URL.
func (t *Transport) Dial(ctx context.Context, addr string) (protocol.Connection, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = t.config.DialTimeout

	t.logger.Debug("dialing", log.String("addr", addr))

	conn, resp, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if t.config.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(t.config.MaxFrameSize))
	}

	t.logger.Info("connected", log.String("remote_addr", conn.RemoteAddr().String()))
	return newConnection(conn, t.config), nil
}

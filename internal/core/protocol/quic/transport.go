package quic

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

// alpnProtocol is the ALPN token the sync server advertises.
const alpnProtocol = "driftsync"

// Transport dials QUIC connections to the sync server.
type Transport struct {
	config    protocol.Config
	tlsConfig *tls.Config
	logger    log.Log
}

func NewTransport(config protocol.Config, tlsConfig *tls.Config, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Nop{}
	}
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	tlsConfig = tlsConfig.Clone()
	tlsConfig.NextProtos = append(tlsConfig.NextProtos, alpnProtocol)

	return &Transport{
		config:    config,
		tlsConfig: tlsConfig,
		logger:    logger.With(log.String("transport", "quic")),
	}
}

func (t *Transport) Type() string { return "quic" }

// Dial connects to a host:port address.
func (t *Transport) Dial(ctx context.Context, addr string) (protocol.Connection, error) {
	tlsConfig := t.tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = addr
		}
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:       30 * time.Second,
		KeepAlivePeriod:      15 * time.Second,
		HandshakeIdleTimeout: t.config.DialTimeout,
	}

	t.logger.Debug("dialing", log.String("addr", addr))

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	c, err := newConnection(ctx, conn, t.config)
	if err != nil {
		_ = conn.CloseWithError(0, "stream setup failed")
		return nil, err
	}

	t.logger.Info("connected", log.String("remote_addr", conn.RemoteAddr().String()))
	return c, nil
}

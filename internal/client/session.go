package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/engine"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
)

// Session owns one connection to the sync server and drives the engine's
// tick loop. The transport boundary is the only asynchronous one: the read
// pump enqueues decoded events, the tick goroutine drains them, and
// outbound events leave through the send step at the end of each tick.
type Session struct {
	cfg       config.Config
	transport protocol.Transport
	engine    *engine.Engine
	logger    log.Log
}

func NewSession(cfg config.Config, transport protocol.Transport, eng *engine.Engine, logger log.Log) *Session {
	if logger == nil {
		logger = log.Nop{}
	}
	return &Session{
		cfg:       cfg,
		transport: transport,
		engine:    eng,
		logger:    logger.With(log.String("component", "session")),
	}
}

// Run dials the server and blocks until ctx is cancelled or the connection
// fails. Reconnection policy is the caller's concern.
func (s *Session) Run(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.DialTimeout)
	conn, err := s.transport.Dial(dialCtx, s.cfg.Network.ServerAddr)
	cancel()
	if err != nil {
		return errors.Wrap(err, "connect")
	}

	// Prime a full reconciliation straight away.
	if err = s.send(conn, protocol.RosterRequest{}); err != nil {
		_ = conn.Close()
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return conn.Close() // unblocks the read pump
	})

	g.Go(func() error {
		return s.readPump(ctx, conn)
	})

	g.Go(func() error {
		return s.tickLoop(ctx, conn)
	})

	g.Go(func() error {
		return s.rosterLoop(ctx, conn)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil // deliberate shutdown
	}
	return err
}

// readPump decodes frames into engine events. A malformed frame is dropped
// with a diagnostic; only transport failure ends the pump.
func (s *Session) readPump(ctx context.Context, conn protocol.Connection) error {
	for {
		data, err := conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "receive")
		}
		event, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("dropping undecodable frame", log.Err(err))
			continue
		}
		s.engine.Enqueue(event)
	}
}

// tickLoop drives the engine at the configured cadence and flushes the
// outbound queue after every tick.
func (s *Session) tickLoop(ctx context.Context, conn protocol.Connection) error {
	ticker := time.NewTicker(s.cfg.Engine.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.engine.Tick(dt)

			for _, event := range s.engine.Outbound().Drain() {
				if err := s.send(conn, event); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	}
}

// rosterLoop periodically requests the authoritative roster; the response
// drives full reconciliation through the normal inbound path.
func (s *Session) rosterLoop(ctx context.Context, conn protocol.Connection) error {
	ticker := time.NewTicker(s.cfg.Network.RosterRequestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.send(conn, protocol.RosterRequest{}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (s *Session) send(conn protocol.Connection, event protocol.Event) error {
	data, err := protocol.Encode(event)
	if err != nil {
		// An unencodable outbound event is a programming error worth
		// surfacing, but not worth killing the session over.
		s.logger.Error("encode outbound event failed", log.Err(err))
		return nil
	}
	if err = conn.Send(data); err != nil {
		return errors.Wrap(err, "send")
	}
	return nil
}

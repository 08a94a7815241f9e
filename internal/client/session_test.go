package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/engine"
	"github.com/driftsync/driftsync/internal/core/events/bus"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	inbox  chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() string           { return "fake" }
func (c *fakeConn) RemoteAddr() net.Addr { return nil }

func (c *fakeConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return protocol.ErrConnectionClosed
	default:
	}
	c.mu.Lock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.sent = append(c.sent, buf)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, protocol.ErrConnectionClosed
	}
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeTransport struct {
	conn *fakeConn
}

func (t *fakeTransport) Dial(context.Context, string) (protocol.Connection, error) {
	return t.conn, nil
}

func (t *fakeTransport) Type() string { return "fake" }

func newTestSession(t *testing.T) (*Session, *engine.Engine, *fakeConn) {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.TickInterval = 5 * time.Millisecond
	cfg.Network.RosterRequestInterval = time.Hour

	stage := render.NewMemoryStage()
	eng := engine.New(cfg.Engine, "local", world.Vec3{}, stage, bus.New(), nil)
	conn := newFakeConn()
	return NewSession(cfg, &fakeTransport{conn: conn}, eng, nil), eng, conn
}

func TestSessionSendsInitialRosterRequest(t *testing.T) {
	s, _, conn := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(conn.sentFrames()) >= 1
	}, time.Second, time.Millisecond)

	event, err := protocol.Decode(conn.sentFrames()[0])
	require.NoError(t, err)
	assert.IsType(t, &protocol.RosterRequest{}, event)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionDeliversInboundEvents(t *testing.T) {
	s, eng, conn := newTestSession(t)

	frame, err := protocol.Encode(&protocol.EntityJoined{
		ID:       "p1",
		Position: &world.Vec3{X: 4, Z: 4},
	})
	require.NoError(t, err)
	conn.inbox <- frame

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return eng.Registry().Len() == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionSurvivesGarbageFrames(t *testing.T) {
	s, eng, conn := newTestSession(t)

	conn.inbox <- []byte("not an envelope")
	frame, err := protocol.Encode(&protocol.EntityJoined{
		ID:       "p1",
		Position: &world.Vec3{X: 1},
	})
	require.NoError(t, err)
	conn.inbox <- frame

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return eng.Registry().Len() == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionStopsWhenConnectionDrops(t *testing.T) {
	s, _, conn := newTestSession(t)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(conn.sentFrames()) >= 1
	}, time.Second, time.Millisecond)

	conn.Close()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("session did not stop after connection loss")
	}
}

package engine

import (
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
)

const testLocalID = protocol.EntityID("local-entity")

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestEngine() (*Engine, *render.MemoryStage, *fakeClock) {
	clock := newFakeClock()
	stage := render.NewMemoryStage()
	eng := New(config.Default().Engine, testLocalID, world.Vec3{}, stage, nil, nil,
		WithClock(clock.Now))
	return eng, stage, clock
}

func joined(id protocol.EntityID, pos world.Vec3) protocol.EntityJoined {
	p := pos
	return protocol.EntityJoined{ID: id, Position: &p}
}

func moved(id protocol.EntityID, pos world.Vec3) *protocol.EntityMoved {
	p := pos
	return &protocol.EntityMoved{ID: id, Position: &p}
}

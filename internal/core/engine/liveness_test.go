package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
)

func newLivenessFixture(t *testing.T) (*Registry, *LivenessMonitor, *render.MemoryStage, *fakeClock) {
	t.Helper()
	cfg := config.Default().Engine
	stage := render.NewMemoryStage()
	reg := NewRegistry(stage, nil, nil)
	clock := &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	return reg, NewLivenessMonitor(cfg, reg, nil, nil), stage, clock
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	reg, lm, stage, clock := newLivenessFixture(t)

	reg.RegisterOrUpdate("stale", Entity{DisappearanceDeadline: clock.Now().Add(-time.Second)})
	reg.RegisterOrUpdate("fresh", Entity{DisappearanceDeadline: clock.Now().Add(time.Minute)})

	removed := lm.Sweep(clock.Now())

	require.Len(t, removed, 1)
	assert.Equal(t, protocol.EntityID("stale"), removed[0])
	_, ok := reg.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 1, stage.Len())
}

func TestSweepIsIdempotent(t *testing.T) {
	reg, lm, _, clock := newLivenessFixture(t)

	reg.RegisterOrUpdate("stale", Entity{DisappearanceDeadline: clock.Now().Add(-time.Second)})

	assert.Len(t, lm.Sweep(clock.Now()), 1)
	assert.Empty(t, lm.Sweep(clock.Now()))
	assert.Equal(t, 0, reg.Len())
}

func TestRefreshedDeadlineSurvivesSweep(t *testing.T) {
	reg, lm, stage, clock := newLivenessFixture(t)

	ent, _ := reg.RegisterOrUpdate("p1", Entity{DisappearanceDeadline: clock.Now().Add(-time.Second)})

	// An update arriving before the sweep pushes the deadline out and bumps
	// the generation; the earlier expiry must then do nothing.
	ent.DisappearanceDeadline = clock.Now().Add(time.Minute)
	ent.expiryGen++

	assert.Empty(t, lm.Sweep(clock.Now()))
	_, ok := reg.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 1, stage.Len())
}

func TestSweepCountsRemovals(t *testing.T) {
	cfg := config.Default().Engine
	stage := render.NewMemoryStage()
	metrics := NewMetrics()
	reg := NewRegistry(stage, nil, metrics)
	lm := NewLivenessMonitor(cfg, reg, nil, metrics)

	now := time.Now()
	reg.RegisterOrUpdate("a", Entity{DisappearanceDeadline: now.Add(-time.Second)})
	reg.RegisterOrUpdate("b", Entity{DisappearanceDeadline: now.Add(-time.Second)})

	removed := lm.Sweep(now)
	assert.Len(t, removed, 2)
	assert.EqualValues(t, 2, metrics.LivenessRemovals.Load())
}

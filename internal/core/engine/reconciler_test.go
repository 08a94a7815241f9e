package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
)

func newTestReconciler() (*Reconciler, *Registry, *fakeClock) {
	clock := newFakeClock()
	metrics := NewMetrics()
	reg := NewRegistry(render.NewMemoryStage(), nil, metrics)
	rc := NewReconciler(config.Default().Engine, reg, nil, metrics, clock.Now)
	return rc, reg, clock
}

func TestApplyCreatesOnDemand(t *testing.T) {
	rc, reg, _ := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{X: 3, Z: 4}, nil)
	require.NotNil(t, ent)
	assert.Equal(t, 1, reg.Len())

	// No smoothing on first sighting: rendered equals target.
	assert.Equal(t, ent.TargetPosition, ent.RenderedPosition)
	assert.Equal(t, world.Vec3{X: 3, Z: 4}, ent.TargetPosition)
	assert.False(t, ent.hasVelocity)
}

func TestApplySmallCorrectionLeavesRenderedAlone(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{}, nil)
	clock.Advance(100 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 1}, nil)

	assert.Equal(t, world.Vec3{}, ent.RenderedPosition)
	assert.Equal(t, world.Vec3{X: 1}, ent.TargetPosition)
}

func TestApplySnapOnLargeCorrection(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{}, nil)
	clock.Advance(100 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 3}, nil)
	require.True(t, ent.hasVelocity)

	clock.Advance(100 * time.Millisecond)
	far := world.Vec3{X: 50, Z: 50}
	rc.Apply("p1", far, nil)

	// Beyond the snap threshold: rendered cuts to the target and the
	// velocity estimate from before the discontinuity is discarded.
	assert.Equal(t, far, ent.RenderedPosition)
	assert.Equal(t, far, ent.TargetPosition)
	assert.True(t, ent.hasVelocity) // re-estimated from the new pair
}

func TestVelocityEstimateFromTargetsOnly(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{}, nil)

	// Perturb the rendered position; the estimate must ignore it.
	ent.RenderedPosition = world.Vec3{X: -100}

	clock.Advance(200 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 1}, nil)

	assert.InDelta(t, 5.0, ent.VelocityEstimate.X, 1e-9) // 1 unit / 0.2s
	assert.InDelta(t, 0.0, ent.VelocityEstimate.Z, 1e-9)
}

func TestZeroDenominatorSkipsVelocityUpdate(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{}, nil)
	clock.Advance(100 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 1}, nil)
	prevVel := ent.VelocityEstimate

	// Duplicate delivery inside the same clock instant: dt == 0.
	rc.Apply("p1", world.Vec3{X: 2}, nil)
	assert.Equal(t, prevVel, ent.VelocityEstimate)
	assert.Equal(t, world.Vec3{X: 2}, ent.TargetPosition)
}

func TestApplyIdempotentUnderDuplicateDelivery(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{X: 1}, nil)
	clock.Advance(100 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 2}, nil)
	rendered := ent.RenderedPosition

	clock.Advance(50 * time.Millisecond)
	rc.Apply("p1", world.Vec3{X: 2}, nil)

	// Re-applying the same position is harmless on rendered state.
	assert.Equal(t, rendered, ent.RenderedPosition)
	assert.Equal(t, world.Vec3{X: 2}, ent.TargetPosition)
}

func TestOutOfBoundsUpdateClamped(t *testing.T) {
	rc, _, _ := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{X: 10_000, Z: -10_000}, nil)
	bounds := config.Default().Engine.WorldBounds
	assert.Equal(t, world.Vec3{X: bounds.MaxX, Z: bounds.MinZ}, ent.TargetPosition)
	assert.True(t, bounds.Contains(ent.TargetPosition))
}

func TestDeadlineAdvancesOnEveryUpdate(t *testing.T) {
	rc, _, clock := newTestReconciler()

	ent := rc.Apply("p1", world.Vec3{}, nil)
	first := ent.DisappearanceDeadline

	clock.Advance(time.Second)
	rc.Apply("p1", world.Vec3{X: 1}, nil)

	assert.True(t, ent.DisappearanceDeadline.After(first))
}

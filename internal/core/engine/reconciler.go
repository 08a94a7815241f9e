package engine

import (
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/world"
)

// Reconciler ingests authoritative position samples and decides snap versus
// smooth. It is idempotent under duplicate delivery and tolerant of
// reordering: position is pointwise state, so last-applied wins per id.
type Reconciler struct {
	cfg     config.EngineConfig
	reg     *Registry
	logger  log.Log
	metrics *Metrics
	clock   func() time.Time
}

func NewReconciler(cfg config.EngineConfig, reg *Registry, logger log.Log, metrics *Metrics, clock func() time.Time) *Reconciler {
	if logger == nil {
		logger = log.Nop{}
	}
	if clock == nil {
		clock = time.Now
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Reconciler{cfg: cfg, reg: reg, logger: logger, metrics: metrics, clock: clock}
}

// Apply folds one authoritative sample into the registry. Unknown ids are
// created on demand with rendered == target, so a first sighting never
// slides in from the origin.
func (rc *Reconciler) Apply(id protocol.EntityID, pos world.Vec3, _ *time.Time) *Entity {
	now := rc.clock()
	pos = rc.cfg.WorldBounds.Clamp(pos)

	ent, created := rc.reg.RegisterOrUpdate(id, Entity{
		RenderedPosition:      pos,
		TargetPosition:        pos,
		prevTargetPosition:    pos,
		prevTargetTime:        now,
		LastUpdate:            now,
		DisappearanceDeadline: now.Add(rc.cfg.DisappearanceTimeout),
	})
	if created {
		rc.metrics.UpdatesApplied.Add(1)
		return ent
	}

	if distance := ent.RenderedPosition.Distance(pos); distance > rc.cfg.SnapThreshold {
		// A multi-second slide across a large discrepancy looks worse
		// than a cut.
		ent.RenderedPosition = pos
		ent.VelocityEstimate = world.Vec3{}
		ent.hasVelocity = false
		rc.metrics.Snaps.Add(1)
		rc.logger.Debug("snap",
			log.String("entity_id", string(id)),
			log.Float64("distance", distance))
	}

	if dt := now.Sub(ent.prevTargetTime).Seconds(); dt > 0 {
		ent.VelocityEstimate = pos.Sub(ent.prevTargetPosition).Scale(1 / dt)
		ent.hasVelocity = true
	}
	// A zero or negative denominator (duplicate delivery inside one clock
	// tick, clock step) skips the velocity update entirely.

	ent.prevTargetPosition = pos
	ent.prevTargetTime = now
	ent.TargetPosition = pos

	ent.LastUpdate = now
	ent.DisappearanceDeadline = now.Add(rc.cfg.DisappearanceTimeout)
	ent.expiryGen++

	rc.metrics.UpdatesApplied.Add(1)
	return ent
}

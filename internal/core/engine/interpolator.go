package engine

import (
	"math"
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/world"
)

// Interpolator advances rendered positions toward their targets once per
// tick: a distance-tiered exponential catch-up blend, a short-horizon
// dead-reckoning term between sparse updates, and a low-pass facing filter.
// Larger gaps close faster in absolute terms, and alpha never exceeds 1, so
// convergence is monotone with no overshoot.
type Interpolator struct {
	cfg config.EngineConfig
}

func NewInterpolator(cfg config.EngineConfig) *Interpolator {
	return &Interpolator{cfg: cfg}
}

// Advance moves one entity by dt seconds and pushes the result to its
// visual handle.
func (ip *Interpolator) Advance(ent *Entity, dt float64, now time.Time) {
	delta := ent.TargetPosition.Sub(ent.RenderedPosition)
	distance := delta.Length()

	switch {
	case distance < ip.cfg.Epsilon:
		// Kill infinite micro-drift.
		ent.RenderedPosition = ent.TargetPosition
	default:
		ent.RenderedPosition = ent.RenderedPosition.Add(delta.Scale(ip.alpha(distance)))
	}

	// Dead reckoning fills in motion between sparse updates. It is
	// suppressed through an already-large, still-converging gap, and only
	// ramps up as the last authoritative sample ages. The step is bounded
	// by the gap that remains after blending, so prediction can never
	// carry the rendered position past its target.
	if ent.hasVelocity && distance < ip.cfg.PredictionDistanceLimit {
		beta := ip.predictionFactor(now.Sub(ent.LastUpdate))
		remaining := ent.TargetPosition.Sub(ent.RenderedPosition).Length()
		if beta > 0 && remaining >= ip.cfg.Epsilon {
			step := ent.VelocityEstimate.Scale(dt * beta)
			if l := step.Length(); l > remaining {
				step = step.Scale(remaining / l)
			}
			ent.RenderedPosition = ip.cfg.WorldBounds.Clamp(ent.RenderedPosition.Add(step))
		}
	}

	ip.advanceRotation(ent, dt)

	if ent.Handle != nil {
		ent.Handle.SetPosition(ent.RenderedPosition)
		ent.Handle.SetRotation(ent.Rotation)
	}
}

// alpha selects the blend factor for a gap of the given size. Tiers are
// sorted by descending distance; below the smallest tier the factor scales
// continuously with distance so tiny corrections stay gentle.
func (ip *Interpolator) alpha(distance float64) float64 {
	tiers := ip.cfg.InterpTiers
	for _, tier := range tiers {
		if distance > tier.Distance {
			return tier.Alpha
		}
	}
	last := tiers[len(tiers)-1]
	a := distance * (last.Alpha / last.Distance)
	if a > last.Alpha {
		a = last.Alpha
	}
	return a
}

// predictionFactor ramps the dead-reckoning weight with the age of the last
// authoritative sample, capped at MaxPredictionFactor.
func (ip *Interpolator) predictionFactor(sinceUpdate time.Duration) float64 {
	if sinceUpdate <= 0 {
		return 0
	}
	expected := ip.cfg.ExpectedUpdateInterval.Seconds()
	if expected <= 0 {
		return ip.cfg.MaxPredictionFactor
	}
	beta := ip.cfg.MaxPredictionFactor * (sinceUpdate.Seconds() / expected)
	if beta > ip.cfg.MaxPredictionFactor {
		beta = ip.cfg.MaxPredictionFactor
	}
	return beta
}

// advanceRotation turns the entity toward its target direction through an
// exponential low-pass, so facing never snaps even when position does.
func (ip *Interpolator) advanceRotation(ent *Entity, dt float64) {
	dir := ent.TargetPosition.Sub(ent.RenderedPosition)
	if dir.Length() < ip.cfg.Epsilon {
		// Close to target: keep turning toward the last motion direction.
		if ent.hasVelocity && ent.VelocityEstimate.Length() >= ip.cfg.Epsilon {
			dir = ent.VelocityEstimate
		} else {
			return
		}
	}
	targetYaw := dir.Yaw()
	blend := 1 - math.Exp(-ip.cfg.RotationRate*dt)
	ent.Rotation = world.WrapAngle(ent.Rotation + world.AngleDelta(ent.Rotation, targetYaw)*blend)
}

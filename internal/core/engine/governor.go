package engine

import (
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/world"
	"github.com/driftsync/driftsync/pkg/sequence"
)

// Governor bounds the locally-controlled entity's per-tick displacement.
// A long frame hitch followed by one oversized simulated step would
// otherwise be rendered and transmitted as a teleport; the governor caps
// that sample before either happens. It is a cosmetic sanity clamp, not a
// trust boundary.
type Governor struct {
	cfg     config.EngineConfig
	history *sequence.Ring[positionSample]
	logger  log.Log
	metrics *Metrics
}

type positionSample struct {
	pos world.Vec3
	at  time.Time
}

func NewGovernor(cfg config.EngineConfig, logger log.Log, metrics *Metrics) *Governor {
	if logger == nil {
		logger = log.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Governor{
		cfg:     cfg,
		history: sequence.NewRing[positionSample](cfg.HistoryLength),
		logger:  logger,
		metrics: metrics,
	}
}

// Record appends a local position sample and returns the position that may
// be rendered and transmitted. When the instantaneous speed between the two
// most recent samples exceeds the limit, the displacement is capped along
// its own direction, re-clamped to world bounds, and the history entry is
// overwritten with the capped value.
func (g *Governor) Record(pos world.Vec3, now time.Time) world.Vec3 {
	pos = g.cfg.WorldBounds.Clamp(pos)
	g.history.Push(positionSample{pos: pos, at: now})

	prev, ok := g.history.Last(1)
	if !ok {
		return pos
	}
	dt := now.Sub(prev.at).Seconds()
	if dt <= 0 {
		return pos
	}

	displacement := pos.Sub(prev.pos)
	speed := displacement.Length() / dt
	if speed <= g.cfg.MaxLocalSpeed {
		return pos
	}

	capped := prev.pos.Add(displacement.Scale(g.cfg.MaxLocalSpeed * dt / displacement.Length()))
	capped = g.cfg.WorldBounds.Clamp(capped)
	g.history.ReplaceLast(positionSample{pos: capped, at: now})

	g.metrics.GovernorClamps.Add(1)
	g.logger.Debug("local speed capped",
		log.Float64("speed", speed),
		log.Float64("limit", g.cfg.MaxLocalSpeed))
	return capped
}

// Reset clears the history, e.g. after an authoritative teleport the cap
// must not fight.
func (g *Governor) Reset() {
	g.history.Reset()
}

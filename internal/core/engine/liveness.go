package engine

import (
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
)

// LivenessMonitor removes entities whose owner stopped sending updates
// without an explicit departure. It is the safety net for ungraceful
// disconnects; explicit left events always take precedence and bypass it.
type LivenessMonitor struct {
	cfg     config.EngineConfig
	reg     *Registry
	logger  log.Log
	metrics *Metrics
}

func NewLivenessMonitor(cfg config.EngineConfig, reg *Registry, logger log.Log, metrics *Metrics) *LivenessMonitor {
	if logger == nil {
		logger = log.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &LivenessMonitor{cfg: cfg, reg: reg, logger: logger, metrics: metrics}
}

// Sweep removes every entity whose deadline has passed and returns the
// removed ids. An expiry observed here can race with a removal through
// another path only across ticks, never within one; the generation check
// turns such a stale observation into a detectable no-op.
func (lm *LivenessMonitor) Sweep(now time.Time) []protocol.EntityID {
	var removed []protocol.EntityID
	for _, ent := range lm.reg.All() {
		if !ent.DisappearanceDeadline.Before(now) {
			continue
		}
		gen := ent.expiryGen
		cur, ok := lm.reg.Get(ent.ID)
		if !ok || cur != ent || cur.expiryGen != gen {
			continue // removed or refreshed since the snapshot
		}
		if lm.reg.Remove(ent.ID) {
			removed = append(removed, ent.ID)
			lm.metrics.LivenessRemovals.Add(1)
			lm.logger.Info("entity timed out",
				log.String("entity_id", string(ent.ID)),
				log.Duration("timeout", lm.cfg.DisappearanceTimeout))
		}
	}
	return removed
}

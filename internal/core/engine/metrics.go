package engine

import "sync/atomic"

// Metrics counts engine activity for diagnostics. Counters are atomic so
// transport goroutines can bump queue stats without touching the tick.
type Metrics struct {
	UpdatesApplied   atomic.Uint64
	Snaps            atomic.Uint64
	EventsDropped    atomic.Uint64
	HandlesCreated   atomic.Uint64
	DedupRemovals    atomic.Uint64
	DedupHeals       atomic.Uint64
	LivenessRemovals atomic.Uint64
	GovernorClamps   atomic.Uint64
	MovesSent        atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time copy safe to log or export.
type Snapshot struct {
	UpdatesApplied   uint64 `json:"updates_applied"`
	Snaps            uint64 `json:"snaps"`
	EventsDropped    uint64 `json:"events_dropped"`
	HandlesCreated   uint64 `json:"handles_created"`
	DedupRemovals    uint64 `json:"dedup_removals"`
	DedupHeals       uint64 `json:"dedup_heals"`
	LivenessRemovals uint64 `json:"liveness_removals"`
	GovernorClamps   uint64 `json:"governor_clamps"`
	MovesSent        uint64 `json:"moves_sent"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		UpdatesApplied:   m.UpdatesApplied.Load(),
		Snaps:            m.Snaps.Load(),
		EventsDropped:    m.EventsDropped.Load(),
		HandlesCreated:   m.HandlesCreated.Load(),
		DedupRemovals:    m.DedupRemovals.Load(),
		DedupHeals:       m.DedupHeals.Load(),
		LivenessRemovals: m.LivenessRemovals.Load(),
		GovernorClamps:   m.GovernorClamps.Load(),
		MovesSent:        m.MovesSent.Load(),
	}
}

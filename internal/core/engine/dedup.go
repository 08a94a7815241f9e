package engine

import (
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
)

// Deduper guarantees at most one visual handle per identity and reconciles
// the registry against the authoritative roster. Every operation here only
// removes surplus state or heals absent state; none can create a duplicate,
// so redundant or interleaved invocations are safe.
type Deduper struct {
	reg     *Registry
	stage   render.Stage
	logger  log.Log
	metrics *Metrics
}

func NewDeduper(reg *Registry, stage render.Stage, logger log.Log, metrics *Metrics) *Deduper {
	if logger == nil {
		logger = log.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Deduper{reg: reg, stage: stage, logger: logger, metrics: metrics}
}

// Audit is the out-of-band consistency pass: a full stage traversal grouped
// by entity id, checked both ways against the registry. The incremental
// index handles the hot path; this is defense in depth on a timer.
func (d *Deduper) Audit() {
	byEntity := make(map[protocol.EntityID][]render.Handle)
	for _, h := range d.stage.AllHandles() {
		byEntity[h.EntityID()] = append(byEntity[h.EntityID()], h)
	}

	// Surplus or orphaned handles.
	for id, handles := range byEntity {
		ent, tracked := d.reg.Get(id)
		if !tracked {
			// Ghosts: renderables with no live registry entry.
			for _, h := range handles {
				d.stage.DestroyHandle(h.ID())
				d.metrics.DedupRemovals.Add(1)
				d.logger.Warn("destroyed ghost handle",
					log.String("entity_id", string(id)),
					log.String("handle_id", string(h.ID())))
			}
			continue
		}
		d.resolve(ent, handles)
	}

	// Registered entities with no handle at all: self-heal.
	for _, ent := range d.reg.All() {
		if len(byEntity[ent.ID]) == 0 {
			d.reg.EnsureHandle(ent)
			d.metrics.DedupHeals.Add(1)
			d.logger.Warn("recreated missing handle",
				log.String("entity_id", string(ent.ID)))
		}
	}
}

// CheckEntity runs the per-id consistency pass: invoked on demand before
// any new handle would be created for id. For an id the registry does not
// track, every stage handle tagged with it is a ghost from an earlier life
// and is torn down so the pending create starts clean.
func (d *Deduper) CheckEntity(id protocol.EntityID) {
	ent, ok := d.reg.Get(id)
	if !ok {
		for _, h := range d.stage.HandlesFor(id) {
			d.stage.DestroyHandle(h.ID())
			d.metrics.DedupRemovals.Add(1)
			d.logger.Warn("destroyed ghost handle",
				log.String("entity_id", string(id)),
				log.String("handle_id", string(h.ID())))
		}
		return
	}
	handles := d.stage.HandlesFor(id)
	if len(handles) == 0 {
		d.reg.EnsureHandle(ent)
		d.metrics.DedupHeals.Add(1)
		return
	}
	d.resolve(ent, handles)
}

// resolve keeps exactly one canonical handle for ent: the one the registry
// already references when it survives, otherwise the most recently created.
func (d *Deduper) resolve(ent *Entity, handles []render.Handle) {
	if len(handles) == 1 {
		// Ensure the registry's reference matches the survivor.
		if ent.Handle == nil || ent.Handle.ID() != handles[0].ID() {
			d.reg.AdoptHandle(ent, handles[0])
		}
		return
	}

	canonical := d.pickCanonical(ent, handles)
	for _, h := range handles {
		if h.ID() == canonical.ID() {
			continue
		}
		d.stage.DestroyHandle(h.ID())
		d.metrics.DedupRemovals.Add(1)
		d.logger.Warn("destroyed duplicate handle",
			log.String("entity_id", string(ent.ID)),
			log.String("handle_id", string(h.ID())))
	}
	if ent.Handle == nil || ent.Handle.ID() != canonical.ID() {
		d.reg.AdoptHandle(ent, canonical)
	}
}

func (d *Deduper) pickCanonical(ent *Entity, handles []render.Handle) render.Handle {
	if ent.Handle != nil {
		for _, h := range handles {
			if h.ID() == ent.Handle.ID() {
				return h
			}
		}
	}
	newest := handles[0]
	for _, h := range handles[1:] {
		if h.CreatedAt().After(newest.CreatedAt()) {
			newest = h
		}
	}
	return newest
}

// ReconcileRoster forces the registry's key set to exactly equal the
// authoritative id list. Locally tracked ids absent from the roster are
// removed immediately, without waiting for their timeout; roster ids not
// seen yet are created with defaulted state. localID is never removed.
func (d *Deduper) ReconcileRoster(ids []protocol.EntityID, localID protocol.EntityID, seed func(protocol.EntityID) Entity) {
	want := make(map[protocol.EntityID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	for _, id := range d.reg.IDs() {
		if _, ok := want[id]; ok || id == localID {
			continue
		}
		if d.reg.Remove(id) {
			d.metrics.DedupRemovals.Add(1)
			d.logger.Info("removed entity absent from roster",
				log.String("entity_id", string(id)))
		}
	}

	for id := range want {
		if id == localID {
			continue
		}
		if _, ok := d.reg.Get(id); ok {
			continue
		}
		// Pre-create consistency check, then create from defaulted state.
		d.CheckEntity(id)
		d.reg.RegisterOrUpdate(id, seed(id))
		d.metrics.DedupHeals.Add(1)
		d.logger.Info("created entity from roster",
			log.String("entity_id", string(id)))
	}
}

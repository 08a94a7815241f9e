package engine

import (
	"sync"
	"time"

	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
)

// Entity is the synchronization state for one remote participant. All
// ephemeral per-entity fields live here, keyed by id in the Registry,
// never stashed on the renderable itself.
type Entity struct {
	ID          protocol.EntityID
	DisplayName string

	// RenderedPosition is what gets drawn; TargetPosition is the latest
	// authoritative value the rendered position converges toward.
	RenderedPosition world.Vec3
	TargetPosition   world.Vec3

	// Velocity is estimated strictly from consecutive authoritative
	// targets. Deriving it from rendered samples would feed the smoother's
	// own output back into prediction.
	prevTargetPosition world.Vec3
	prevTargetTime     time.Time
	VelocityEstimate   world.Vec3
	hasVelocity        bool

	// Rotation is the smoothed facing yaw, radians.
	Rotation float64

	LastUpdate            time.Time
	DisappearanceDeadline time.Time

	// expiryGen invalidates stale deadline observations: it is bumped on
	// every deadline reset and on removal, so a deadline captured before
	// either event no longer matches and must no-op.
	expiryGen uint64

	// Handle is a non-owning reference to the renderable. Teardown is
	// requested through the Registry only.
	Handle render.Handle
}

// Registry is the single source of truth mapping entity ids to sync state
// and visual handles. Registration and removal are idempotent; the id to
// handle index is maintained incrementally on every create and remove so
// duplicate checks never traverse the stage.
type Registry struct {
	mu          sync.RWMutex
	entities    map[protocol.EntityID]*Entity
	handleIndex map[protocol.EntityID]render.HandleID

	stage   render.Stage
	logger  log.Log
	metrics *Metrics
}

func NewRegistry(stage render.Stage, logger log.Log, metrics *Metrics) *Registry {
	if logger == nil {
		logger = log.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		entities:    make(map[protocol.EntityID]*Entity),
		handleIndex: make(map[protocol.EntityID]render.HandleID),
		stage:       stage,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterOrUpdate returns the entity for id, creating it from seed on first
// sight. An existing entry is returned unchanged, so duplicate join events
// can never produce a second entity or a second handle.
func (r *Registry) RegisterOrUpdate(id protocol.EntityID, seed Entity) (*Entity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entities[id]; ok {
		return ent, false
	}

	ent := &Entity{}
	*ent = seed
	ent.ID = id
	r.entities[id] = ent
	r.ensureHandleLocked(ent)
	return ent, true
}

// Get returns the entity for id, if present.
func (r *Registry) Get(id protocol.EntityID) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.entities[id]
	return ent, ok
}

// Remove deletes the entity, invalidates its pending expiry, and requests
// teardown of its visual handle. Removing an absent id is a no-op, never an
// error; every removal path in the engine funnels through here.
func (r *Registry) Remove(id protocol.EntityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id protocol.EntityID) bool {
	ent, ok := r.entities[id]
	if !ok {
		return false
	}
	ent.expiryGen++ // a deadline observed before this point is now stale
	if handleID, ok := r.handleIndex[id]; ok {
		r.stage.DestroyHandle(handleID)
		delete(r.handleIndex, id)
	}
	ent.Handle = nil
	delete(r.entities, id)
	return true
}

// All returns a snapshot of every registered entity. Iteration order is
// unspecified.
func (r *Registry) All() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, 0, len(r.entities))
	for _, ent := range r.entities {
		out = append(out, ent)
	}
	return out
}

// IDs returns the current key set.
func (r *Registry) IDs() []protocol.EntityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.EntityID, 0, len(r.entities))
	for id := range r.entities {
		out = append(out, id)
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// EnsureHandle guarantees the entity has exactly one indexed visual handle,
// creating one from registry state when absent. This is the pre-create
// duplicate check: it consults the incremental index, not the stage.
func (r *Registry) EnsureHandle(ent *Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureHandleLocked(ent)
}

func (r *Registry) ensureHandleLocked(ent *Entity) {
	if _, ok := r.handleIndex[ent.ID]; ok && ent.Handle != nil {
		return
	}
	h, err := r.stage.CreateHandle(ent.ID, ent.DisplayName, ent.RenderedPosition)
	if err != nil {
		r.logger.Error("create handle failed",
			log.String("entity_id", string(ent.ID)), log.Err(err))
		return
	}
	ent.Handle = h
	r.handleIndex[ent.ID] = h.ID()
	r.metrics.HandlesCreated.Add(1)
}

// AdoptHandle rebinds the entity's canonical handle, keeping the index in
// step. Used by the dedup sweep when the stage and registry disagree.
func (r *Registry) AdoptHandle(ent *Entity, h render.Handle) {
	r.mu.Lock()
	ent.Handle = h
	r.handleIndex[ent.ID] = h.ID()
	r.mu.Unlock()
}

// IndexedHandle returns the canonical handle id for an entity, if any.
func (r *Registry) IndexedHandle(id protocol.EntityID) (render.HandleID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hid, ok := r.handleIndex[id]
	return hid, ok
}

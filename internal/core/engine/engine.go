package engine

import (
	"time"

	"github.com/driftsync/driftsync/internal/config"
	"github.com/driftsync/driftsync/internal/core/events/bus"
	"github.com/driftsync/driftsync/internal/core/observability/log"
	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/render"
	"github.com/driftsync/driftsync/internal/core/world"
	"github.com/driftsync/driftsync/pkg/sequence"
)

// Bus event types the engine publishes for other client subsystems.
const (
	TopicEntityJoined  = "entity.joined"
	TopicEntityLeft    = "entity.left"
	TopicEntityTimeout = "entity.timeout"
)

// RenderState is the per-frame read surface for one entity.
type RenderState struct {
	Position world.Vec3
	Rotation float64
}

// Engine keeps every remote avatar coherent against a sparse, unordered,
// occasionally-duplicated stream of authoritative updates, and governs the
// local entity's own motion.
//
// Inbound events are queued from transport goroutines and drained at the
// start of Tick, so reconciliation never interleaves with interpolation
// mid-update. Everything else runs synchronously inside the tick.
type Engine struct {
	cfg     config.EngineConfig
	logger  log.Log
	metrics *Metrics
	events  bus.EventBus

	reg      *Registry
	recon    *Reconciler
	interp   *Interpolator
	governor *Governor
	liveness *LivenessMonitor
	deduper  *Deduper

	inbound  *sequence.Queue[protocol.Event]
	outbound *sequence.Queue[protocol.Event]

	localID    protocol.EntityID
	localPos   world.Vec3
	localVel   world.Vec3
	localYaw   float64
	lastSent   world.Vec3
	lastSentAt time.Time

	lastAudit time.Time
	clock     func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithClock substitutes the time source; tests drive it manually.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithInboundCapacity bounds the undrained inbound queue.
func WithInboundCapacity(n int) Option {
	return func(e *Engine) { e.inbound = sequence.NewQueue[protocol.Event](n) }
}

// New builds an engine for a session. localID is this client's own identity,
// localStart its spawn position; stage is the rendering collaborator.
func New(cfg config.EngineConfig, localID protocol.EntityID, localStart world.Vec3,
	stage render.Stage, events bus.EventBus, logger log.Log, opts ...Option) *Engine {

	if logger == nil {
		logger = log.Nop{}
	}
	if events == nil {
		events = bus.New()
	}
	metrics := NewMetrics()
	reg := NewRegistry(stage, logger, metrics)

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With(log.String("component", "sync-engine")),
		metrics:  metrics,
		events:   events,
		reg:      reg,
		interp:   NewInterpolator(cfg),
		governor: NewGovernor(cfg, logger, metrics),
		deduper:  NewDeduper(reg, stage, logger, metrics),
		inbound:  sequence.NewQueue[protocol.Event](1024),
		outbound: sequence.NewQueue[protocol.Event](256),
		localID:  localID,
		localPos: cfg.WorldBounds.Clamp(localStart),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.recon = NewReconciler(cfg, reg, logger, metrics, e.clock)
	e.liveness = NewLivenessMonitor(cfg, reg, logger, metrics)
	e.lastSent = e.localPos
	e.lastAudit = e.clock()
	return e
}

// Enqueue hands an inbound event to the engine. Safe to call from any
// goroutine; the event takes effect at the next tick.
func (e *Engine) Enqueue(event protocol.Event) {
	if e.inbound.Enqueue(event) {
		e.metrics.EventsDropped.Add(1)
		e.logger.Warn("inbound queue overflow, oldest event shed")
	}
}

// Outbound exposes the queue of events awaiting transmission. The session
// layer drains it after each tick.
func (e *Engine) Outbound() *sequence.Queue[protocol.Event] {
	return e.outbound
}

// Tick advances the whole engine by dt seconds: drain inbound, liveness
// sweep, interpolate every entity, periodic dedup audit, then local
// movement and throttled outbound emission.
func (e *Engine) Tick(dt float64) {
	now := e.clock()

	for _, event := range e.inbound.Drain() {
		e.dispatch(event)
	}

	for _, id := range e.liveness.Sweep(now) {
		_ = e.events.Publish(bus.NewEvent(TopicEntityTimeout, "engine", id))
	}

	for _, ent := range e.reg.All() {
		e.interp.Advance(ent, dt, now)
	}

	if now.Sub(e.lastAudit) >= e.cfg.DedupSweepInterval {
		e.deduper.Audit()
		e.lastAudit = now
	}

	e.advanceLocal(dt, now)
}

// dispatch applies one inbound event. Faults are contained per event: a bad
// message is logged and dropped without touching the rest of the batch.
func (e *Engine) dispatch(event protocol.Event) {
	if err := event.Validate(); err != nil {
		e.metrics.EventsDropped.Add(1)
		e.logger.Warn("dropping malformed event", log.Err(err))
		return
	}

	switch ev := event.(type) {
	case *protocol.EntityJoined:
		e.RegisterOrUpdate(*ev)
	case *protocol.EntityLeft:
		e.RemoveIfPresent(ev.ID)
	case *protocol.EntityMoved:
		if ev.ID == e.localID {
			e.logger.Warn("ignoring movement event echoed for local entity")
			return
		}
		if _, ok := e.reg.Get(ev.ID); !ok {
			// Create-on-demand goes through the same pre-create dedup
			// check as an explicit join.
			e.deduper.CheckEntity(ev.ID)
		}
		e.recon.Apply(ev.ID, *ev.Position, ev.Timestamp)
	case *protocol.RosterSync:
		e.ReconcileRoster(ev.IDs)
	default:
		e.metrics.EventsDropped.Add(1)
		e.logger.Warn("dropping unexpected event",
			log.String("type", string(event.Kind())))
	}
}

// RegisterOrUpdate registers a joined entity. Repeat joins for a live id
// return the existing entity untouched; the pre-create dedup check clears
// any ghost handles left over from a previous life of the same id.
func (e *Engine) RegisterOrUpdate(ev protocol.EntityJoined) *Entity {
	if ev.ID == e.localID {
		return nil
	}
	now := e.clock()
	pos := world.Vec3{}
	if ev.Position != nil {
		pos = *ev.Position
	}
	pos = e.cfg.WorldBounds.Clamp(pos)

	e.deduper.CheckEntity(ev.ID)
	ent, created := e.reg.RegisterOrUpdate(ev.ID, Entity{
		DisplayName:           ev.DisplayName,
		RenderedPosition:      pos,
		TargetPosition:        pos,
		prevTargetPosition:    pos,
		prevTargetTime:        now,
		LastUpdate:            now,
		DisappearanceDeadline: now.Add(e.cfg.DisappearanceTimeout),
	})
	if created {
		if ent.Handle != nil && ent.DisplayName != "" {
			ent.Handle.SetDisplayName(ent.DisplayName)
		}
		_ = e.events.Publish(bus.NewEvent(TopicEntityJoined, "engine", ev.ID))
		e.logger.Info("entity joined",
			log.String("entity_id", string(ev.ID)),
			log.String("display_name", ev.DisplayName))
	}
	return ent
}

// RemoveIfPresent removes an entity through the one idempotent removal
// path. The local id is never removed: a relay echoing our own id back as
// a departure must not tear down the local avatar.
func (e *Engine) RemoveIfPresent(id protocol.EntityID) {
	if id == e.localID {
		e.logger.Warn("ignoring departure event for local entity")
		return
	}
	if e.reg.Remove(id) {
		_ = e.events.Publish(bus.NewEvent(TopicEntityLeft, "engine", id))
		e.logger.Info("entity left", log.String("entity_id", string(id)))
	}
}

// RenderState returns the drawable state for id, including the local
// entity's own.
func (e *Engine) RenderState(id protocol.EntityID) (RenderState, bool) {
	if id == e.localID {
		return RenderState{Position: e.localPos, Rotation: e.localYaw}, true
	}
	ent, ok := e.reg.Get(id)
	if !ok {
		return RenderState{}, false
	}
	return RenderState{Position: ent.RenderedPosition, Rotation: ent.Rotation}, true
}

// RunDedupSweep runs the full consistency audit immediately.
func (e *Engine) RunDedupSweep() {
	e.deduper.Audit()
}

// ReconcileRoster forces the tracked set to equal the authoritative ids.
func (e *Engine) ReconcileRoster(ids []protocol.EntityID) {
	now := e.clock()
	e.deduper.ReconcileRoster(ids, e.localID, func(id protocol.EntityID) Entity {
		pos := e.cfg.WorldBounds.Clamp(world.Vec3{})
		return Entity{
			RenderedPosition:      pos,
			TargetPosition:        pos,
			prevTargetPosition:    pos,
			prevTargetTime:        now,
			LastUpdate:            now,
			DisappearanceDeadline: now.Add(e.cfg.DisappearanceTimeout),
		}
	})
}

// SetLocalVelocity sets the local entity's input velocity, units/second.
func (e *Engine) SetLocalVelocity(v world.Vec3) {
	e.localVel = v
}

// LocalPosition returns the governed local position.
func (e *Engine) LocalPosition() world.Vec3 {
	return e.localPos
}

// Registry exposes the registry for collaborating packages and tests.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// MetricsSnapshot returns current counters.
func (e *Engine) MetricsSnapshot() Snapshot {
	return e.metrics.Snapshot()
}

// advanceLocal integrates input velocity, runs the anomaly governor over
// the new sample, and emits a throttled LocalMove when the position moved
// far enough since the last send.
func (e *Engine) advanceLocal(dt float64, now time.Time) {
	if !e.localVel.IsZero() {
		candidate := e.localPos.Add(e.localVel.Scale(dt))
		e.localPos = e.governor.Record(candidate, now)
		e.localYaw = e.localVel.Yaw()
	} else {
		// Still feed the governor so a later spike is measured against
		// fresh history, not a stale sample.
		e.localPos = e.governor.Record(e.localPos, now)
	}

	if now.Sub(e.lastSentAt) < e.cfg.SendInterval {
		return
	}
	if e.localPos.Distance(e.lastSent) <= e.cfg.MinSendDelta {
		return
	}
	e.outbound.Enqueue(protocol.LocalMove{Position: e.localPos, Timestamp: now})
	e.lastSent = e.localPos
	e.lastSentAt = now
	e.metrics.MovesSent.Add(1)
}

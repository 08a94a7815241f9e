package render

import (
	"time"

	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/world"
)

// HandleID identifies one renderable object on the stage.
type HandleID string

// Handle is a live renderable avatar. The sync engine holds a non-owning
// reference and drives it; the stage owns the underlying resources.
type Handle interface {
	ID() HandleID
	EntityID() protocol.EntityID
	CreatedAt() time.Time

	SetPosition(pos world.Vec3)
	SetRotation(yaw float64)
	SetDisplayName(name string)
}

// Stage is the rendering collaborator. Handle creation and teardown go
// through the sync engine exclusively, so the one-handle-per-entity
// invariant stays enforceable in one place.
type Stage interface {
	// CreateHandle builds a new renderable for id. It performs no
	// deduplication; calling it twice for the same id yields two handles.
	CreateHandle(id protocol.EntityID, displayName string, pos world.Vec3) (Handle, error)

	// DestroyHandle tears a handle down. Unknown ids are a no-op.
	DestroyHandle(id HandleID)

	// HandlesFor enumerates every live handle tagged with id. This is a
	// full traversal kept for out-of-band audits, not the hot path.
	HandlesFor(id protocol.EntityID) []Handle

	// AllHandles enumerates every live handle. Audit use only.
	AllHandles() []Handle
}

package render

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftsync/driftsync/internal/core/protocol"
	"github.com/driftsync/driftsync/internal/core/world"
)

var (
	_ Stage  = (*MemoryStage)(nil)
	_ Handle = (*MemoryHandle)(nil)
)

// MemoryStage is a Stage with no rendering backend. The headless client and
// the engine tests run against it.
type MemoryStage struct {
	mu      sync.RWMutex
	handles map[HandleID]*MemoryHandle

	created   uint64
	destroyed uint64
}

func NewMemoryStage() *MemoryStage {
	return &MemoryStage{handles: make(map[HandleID]*MemoryHandle)}
}

func (s *MemoryStage) CreateHandle(id protocol.EntityID, displayName string, pos world.Vec3) (Handle, error) {
	h := &MemoryHandle{
		id:          HandleID(uuid.New().String()),
		entityID:    id,
		displayName: displayName,
		position:    pos,
		createdAt:   time.Now(),
	}

	s.mu.Lock()
	s.handles[h.id] = h
	s.created++
	s.mu.Unlock()
	return h, nil
}

func (s *MemoryStage) DestroyHandle(id HandleID) {
	s.mu.Lock()
	if _, ok := s.handles[id]; ok {
		delete(s.handles, id)
		s.destroyed++
	}
	s.mu.Unlock()
}

func (s *MemoryStage) HandlesFor(id protocol.EntityID) []Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Handle
	for _, h := range s.handles {
		if h.entityID == id {
			out = append(out, h)
		}
	}
	return out
}

func (s *MemoryStage) AllHandles() []Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Handle, 0, len(s.handles))
	for _, h := range s.handles {
		out = append(out, h)
	}
	return out
}

// Len returns the number of live handles.
func (s *MemoryStage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

// Counts returns lifetime created and destroyed totals.
func (s *MemoryStage) Counts() (created, destroyed uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, s.destroyed
}

// MemoryHandle records the state the engine pushes at it.
type MemoryHandle struct {
	id       HandleID
	entityID protocol.EntityID

	mu          sync.Mutex
	displayName string
	position    world.Vec3
	rotation    float64
	createdAt   time.Time
}

func (h *MemoryHandle) ID() HandleID                { return h.id }
func (h *MemoryHandle) EntityID() protocol.EntityID { return h.entityID }
func (h *MemoryHandle) CreatedAt() time.Time        { return h.createdAt }

func (h *MemoryHandle) SetPosition(pos world.Vec3) {
	h.mu.Lock()
	h.position = pos
	h.mu.Unlock()
}

func (h *MemoryHandle) SetRotation(yaw float64) {
	h.mu.Lock()
	h.rotation = yaw
	h.mu.Unlock()
}

func (h *MemoryHandle) SetDisplayName(name string) {
	h.mu.Lock()
	h.displayName = name
	h.mu.Unlock()
}

// Position returns the last pushed position.
func (h *MemoryHandle) Position() world.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Rotation returns the last pushed yaw.
func (h *MemoryHandle) Rotation() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rotation
}

// DisplayName returns the last pushed name.
func (h *MemoryHandle) DisplayName() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.displayName
}

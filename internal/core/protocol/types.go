package protocol

import (
	"time"

	"github.com/pkg/errors"

	"github.com/driftsync/driftsync/internal/core/world"
)

// EntityID is the stable identity of a participant, assigned by the server.
type EntityID string

// EventType tags an envelope's payload.
type EventType string

const (
	EventEntityJoined EventType = "entity.joined"
	EventEntityLeft   EventType = "entity.left"
	EventEntityMoved  EventType = "entity.moved"
	EventRosterSync   EventType = "roster.sync"

	EventLocalMove     EventType = "local.move"
	EventRosterRequest EventType = "roster.request"
)

// Event is any message carried in an envelope, inbound or outbound.
type Event interface {
	Kind() EventType
	Validate() error
}

// EntityJoined announces a new participant.
type EntityJoined struct {
	ID          EntityID    `json:"id"`
	Position    *world.Vec3 `json:"position"`
	DisplayName string      `json:"display_name,omitempty"`
}

func (EntityJoined) Kind() EventType { return EventEntityJoined }

func (e EntityJoined) Validate() error {
	if e.ID == "" {
		return errors.New("joined: missing id")
	}
	if e.Position == nil {
		return errors.New("joined: missing position")
	}
	return nil
}

// EntityLeft announces a graceful departure.
type EntityLeft struct {
	ID EntityID `json:"id"`
}

func (EntityLeft) Kind() EventType { return EventEntityLeft }

func (e EntityLeft) Validate() error {
	if e.ID == "" {
		return errors.New("left: missing id")
	}
	return nil
}

// EntityMoved carries an authoritative position sample. Timestamp is the
// server clock when the sample was taken and may be absent.
type EntityMoved struct {
	ID        EntityID    `json:"id"`
	Position  *world.Vec3 `json:"position"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

func (EntityMoved) Kind() EventType { return EventEntityMoved }

func (e EntityMoved) Validate() error {
	if e.ID == "" {
		return errors.New("moved: missing id")
	}
	if e.Position == nil {
		return errors.New("moved: missing position")
	}
	return nil
}

// RosterSync is the authoritative full list of live entity ids.
type RosterSync struct {
	IDs []EntityID `json:"ids"`
}

func (RosterSync) Kind() EventType { return EventRosterSync }

func (e RosterSync) Validate() error {
	for _, id := range e.IDs {
		if id == "" {
			return errors.New("roster: empty id")
		}
	}
	return nil
}

// RosterRequest asks the server for a RosterSync.
type RosterRequest struct{}

func (RosterRequest) Kind() EventType { return EventRosterRequest }
func (RosterRequest) Validate() error { return nil }

// LocalMove reports the governed local position upstream.
type LocalMove struct {
	Position  world.Vec3 `json:"position"`
	Timestamp time.Time  `json:"timestamp"`
}

func (LocalMove) Kind() EventType { return EventLocalMove }

func (e LocalMove) Validate() error {
	if e.Timestamp.IsZero() {
		return errors.New("local move: missing timestamp")
	}
	return nil
}

package protocol

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// ErrChecksumMismatch marks an envelope whose payload was corrupted in
// transit or truncated by a buggy relay.
var ErrChecksumMismatch = errors.New("protocol: envelope checksum mismatch")

// Envelope is the wire frame: a type tag, the JSON payload, and an xxhash
// digest of the payload so a damaged frame is dropped instead of decoded
// into garbage coordinates.
type Envelope struct {
	Type     EventType       `json:"type"`
	Checksum uint64          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode wraps an event into a serialized envelope.
func Encode(event Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	env := Envelope{
		Type:     event.Kind(),
		Checksum: xxhash.Sum64(payload),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return data, nil
}

// Decode parses a serialized envelope, verifies its checksum, and returns
// the typed event. Unknown event types and events failing validation are
// errors; the caller drops the frame and carries on.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}
	if xxhash.Sum64(env.Payload) != env.Checksum {
		return nil, ErrChecksumMismatch
	}

	var event Event
	switch env.Type {
	case EventEntityJoined:
		event = &EntityJoined{}
	case EventEntityLeft:
		event = &EntityLeft{}
	case EventEntityMoved:
		event = &EntityMoved{}
	case EventRosterSync:
		event = &RosterSync{}
	case EventLocalMove:
		event = &LocalMove{}
	case EventRosterRequest:
		event = &RosterRequest{}
	default:
		return nil, errors.Errorf("unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, event); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s payload", env.Type)
	}
	if err := event.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s payload", env.Type)
	}
	return event, nil
}

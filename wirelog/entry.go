package wirelog

import (
	"encoding/json"
	"time"

	"github.com/c360/swarmpulse/envelope"
)

// Entry is one inbound frame as received, with its decode outcome.
type Entry struct {
	ID         string                 `json:"id"`
	ReceivedAt time.Time              `json:"receivedAt"`
	Source     string                 `json:"source"`
	RoutingKey string                 `json:"routingKey,omitempty"`
	Payload    string                 `json:"payload"`
	Envelope   *envelope.Envelope     `json:"envelope,omitempty"`
	Errors     []envelope.DecodeError `json:"errors"`

	size int64
}

// Valid reports whether the frame decoded without errors.
func (e Entry) Valid() bool {
	return len(e.Errors) == 0 && e.Envelope != nil
}

// Size is the accounted byte size of the entry: the raw payload, plus the
// serialized envelope when present, plus the serialized error list when
// non-empty.
func (e Entry) Size() int64 {
	return e.size
}

func entrySize(e Entry) int64 {
	n := int64(len(e.Payload))
	if e.Envelope != nil {
		if b, err := json.Marshal(e.Envelope); err == nil {
			n += int64(len(b))
		}
	}
	if len(e.Errors) > 0 {
		if b, err := json.Marshal(e.Errors); err == nil {
			n += int64(len(b))
		}
	}
	return n
}

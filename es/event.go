package es

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Headers carries event metadata that is not part of the event payload
// (correlation ids, user ids, tenant ids...). Stored serialized in the
// headers column.
type Headers map[string]any

// Event represents an immutable domain event.
// Events are value objects without a position until persisted.
type Event struct {
	// CreatedAt is when the event was created
	CreatedAt time.Time

	// Headers contains additional event metadata
	Headers Headers

	// AggregateType identifies the type of aggregate this event belongs to
	AggregateType string

	// AggregateID identifies the aggregate instance
	AggregateID string

	// EventType identifies the type of event
	EventType string

	// Content is the serialized event payload.
	// It must be valid JSON; an empty payload is stored as {}.
	Content json.RawMessage

	// AggregateVersion is the version of the aggregate after this event is applied.
	// The unique constraint on it is what detects concurrent writers.
	AggregateVersion int64

	// Position is the "no" column of the physical table.
	// It is only set on events read back from storage.
	Position int64

	// EventID is a unique identifier for this event
	EventID uuid.UUID
}

// Stream is a named batch of events handed to FirstCommit or Amend.
type Stream struct {
	Name   StreamName
	Events []Event
}

// NewStream creates a stream with the given name and events.
func NewStream(name StreamName, events ...Event) Stream {
	return Stream{Name: name, Events: events}
}

// Version returns the aggregate version of the last event in the stream.
// Returns 0 if the stream has no events.
func (s Stream) Version() int64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].AggregateVersion
}

// IsEmpty reports whether the stream carries no events.
func (s Stream) IsEmpty() bool {
	return len(s.Events) == 0
}

// Direction is the order in which events are read by position.
type Direction string

const (
	// Forward reads from the lowest position to the highest.
	Forward Direction = "asc"

	// Backward reads from the highest position to the lowest.
	Backward Direction = "desc"
)

// ParseDirection converts "asc"/"desc" (or "forward"/"backward") into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "asc", "ASC", "forward", "Forward":
		return Forward, true
	case "desc", "DESC", "backward", "Backward":
		return Backward, true
	}
	return "", false
}

// SQL returns the ORDER BY keyword for the direction.
func (d Direction) SQL() string {
	if d == Backward {
		return "DESC"
	}
	return "ASC"
}

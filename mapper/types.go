package mapper

import "github.com/google/uuid"

// Record is the stored envelope a recorder persists: spec.md's
// "event record" five-tuple, minus NotificationID (assigned by the
// recorder at insert time, not by the mapper).
type Record struct {
	SequenceID uuid.UUID
	Position   uint64
	Topic      string
	State      []byte
	PipelineID int
}

// DomainEvent is the core's view of a domain event: everything the mapper
// needs to round-trip it, with the concrete attribute shape left to the
// caller. Domain model shape itself (how a caller organizes entities and
// event types) is out of this core's scope; DomainEvent is the fixed
// envelope the core requires callers to produce.
type DomainEvent struct {
	SequenceID uuid.UUID
	Position   uint64
	Topic      string
	// Attributes holds the event's own payload fields, encoded through the
	// transcoder.
	Attributes map[string]any
	// Metadata holds envelope-level fields the core itself manages, such as
	// causal-dependency tracking (process.WithCausalDeps). Callers may also
	// stash their own entries here; it is transcoded exactly like
	// Attributes but kept in a separate namespace so a policy's causal
	// bookkeeping never collides with domain payload field names.
	Metadata map[string]any
}

// EventTypeInfo describes one registered topic: its current schema version
// and, if the schema has ever changed, the upcast chain needed to bring an
// older stored record up to the current version.
type EventTypeInfo struct {
	ClassVersion int
	Upcaster     Upcaster
}

// Upcaster transforms a stored record's decoded-but-not-yet-typed state
// from one schema version to the next. Implementations should supply
// defaults for attributes introduced at fromVersion+1 and must be
// side-effect free (the mapper may call it once per intermediate version).
type Upcaster interface {
	Upcast(state map[string]any, fromVersion int) (map[string]any, error)
}

// UpcasterFunc adapts a plain function to the Upcaster interface.
type UpcasterFunc func(state map[string]any, fromVersion int) (map[string]any, error)

// Upcast implements Upcaster.
func (f UpcasterFunc) Upcast(state map[string]any, fromVersion int) (map[string]any, error) {
	return f(state, fromVersion)
}

package mapper

import (
	"errors"
	"fmt"
	"sync"
)

// ErrTopicResolution is returned when a stored record's topic cannot be
// resolved to a registered event type, even after consulting the
// substitution table. Per spec.md §4.3 this is fatal for the record — the
// mapper never guesses.
var ErrTopicResolution = errors.New("mapper: topic resolution failed")

// TopicRegistry is the process-wide, read-after-initialization table
// mapping topic strings to EventTypeInfo, plus an old-topic -> new-topic
// substitution table for events whose class has been renamed or moved.
//
// Grounded in the teacher's convention of durable string identifiers
// (NATS subjects, outbox aggregate_type/type columns) that must survive
// service refactors without forcing a rename of the wire format.
type TopicRegistry struct {
	mu            sync.RWMutex
	types         map[string]EventTypeInfo
	substitutions map[string]string
}

// NewTopicRegistry returns an empty TopicRegistry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{
		types:         make(map[string]EventTypeInfo),
		substitutions: make(map[string]string),
	}
}

// Register associates a topic string with its EventTypeInfo. Registering
// the same topic twice panics — a duplicate registration at startup is a
// configuration bug, not a runtime condition to recover from.
func (r *TopicRegistry) Register(topic string, info EventTypeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[topic]; exists {
		panic(fmt.Sprintf("mapper: topic %q already registered", topic))
	}
	r.types[topic] = info
}

// Substitute records that records stored under oldTopic should resolve as
// newTopic on decode. newTopic must itself be registered (directly or
// transitively via further substitution).
func (r *TopicRegistry) Substitute(oldTopic, newTopic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.substitutions[oldTopic] = newTopic
}

// Resolve follows the substitution chain (if any) from topic and returns
// the resolved topic name plus its EventTypeInfo. A substitution takes
// precedence over a registration under the same name. It fails with
// ErrTopicResolution if the chain does not terminate at a registered type.
func (r *TopicRegistry) Resolve(topic string) (string, EventTypeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]bool{}
	current := topic
	for {
		if seen[current] {
			return "", EventTypeInfo{}, fmt.Errorf("%w: substitution cycle at %q", ErrTopicResolution, current)
		}
		seen[current] = true

		if next, ok := r.substitutions[current]; ok {
			current = next
			continue
		}
		if info, ok := r.types[current]; ok {
			return current, info, nil
		}
		return "", EventTypeInfo{}, fmt.Errorf("%w: %q", ErrTopicResolution, topic)
	}
}

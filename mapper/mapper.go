package mapper

import (
	"fmt"

	"github.com/arc-self/eventcore/cryptcodec"
	"github.com/arc-self/eventcore/transcoding"
)

const (
	attributesKey   = "attributes"
	metadataKey     = "metadata"
	classVersionKey = "__class_version__"
)

// EventMapper converts DomainEvents to/from the stored Record envelope,
// per spec.md §4.3: serialize via the transcoder, optionally compress then
// encrypt, resolve topics (with substitution), and upcast on the way back.
type EventMapper struct {
	Transcoder *transcoding.Transcoder
	Topics     *TopicRegistry
	Compressor cryptcodec.Compressor // nil disables compression
	Cipher     cryptcodec.Cipher     // nil disables encryption
}

// ToRecord serializes a DomainEvent into its stored Record form.
func (m *EventMapper) ToRecord(event DomainEvent) (Record, error) {
	_, info, err := m.Topics.Resolve(event.Topic)
	if err != nil {
		return Record{}, err
	}

	encodedAttrs, err := m.Transcoder.Encode(event.Attributes)
	if err != nil {
		return Record{}, fmt.Errorf("mapper: encoding attributes: %w", err)
	}
	encodedMeta, err := m.Transcoder.Encode(nonNilMap(event.Metadata))
	if err != nil {
		return Record{}, fmt.Errorf("mapper: encoding metadata: %w", err)
	}

	state := map[string]any{
		attributesKey: encodedAttrs,
		metadataKey:   encodedMeta,
	}
	if info.ClassVersion > 0 {
		state[classVersionKey] = int64(info.ClassVersion)
	}

	plaintext, err := marshalState(state)
	if err != nil {
		return Record{}, fmt.Errorf("mapper: marshalling state: %w", err)
	}

	payload := plaintext
	if m.Compressor != nil {
		payload, err = m.Compressor.Compress(payload)
		if err != nil {
			return Record{}, fmt.Errorf("mapper: compressing: %w", err)
		}
	}
	if m.Cipher != nil {
		payload, err = m.Cipher.Encrypt(payload)
		if err != nil {
			return Record{}, fmt.Errorf("mapper: encrypting: %w", err)
		}
	}

	return Record{
		SequenceID: event.SequenceID,
		Position:   event.Position,
		Topic:      event.Topic,
		State:      payload,
		PipelineID: pipelineIDFrom(event.Metadata),
	}, nil
}

func pipelineIDFrom(meta map[string]any) int {
	if meta == nil {
		return 0
	}
	if v, ok := meta[pipelineIDMetaKey].(int); ok {
		return v
	}
	return 0
}

// ToEvent reconstructs a DomainEvent from a stored Record: decrypt,
// decompress, unmarshal, upcast to the topic's current class version, then
// decode custom-typed attributes through the transcoder.
func (m *EventMapper) ToEvent(rec Record) (DomainEvent, error) {
	topic, info, err := m.Topics.Resolve(rec.Topic)
	if err != nil {
		return DomainEvent{}, err
	}

	payload := rec.State
	if m.Cipher != nil {
		payload, err = m.Cipher.Decrypt(payload)
		if err != nil {
			return DomainEvent{}, fmt.Errorf("mapper: decrypting record (seq=%s pos=%d): %w", rec.SequenceID, rec.Position, err)
		}
	}
	if m.Compressor != nil {
		payload, err = m.Compressor.Decompress(payload)
		if err != nil {
			return DomainEvent{}, fmt.Errorf("mapper: decompressing record (seq=%s pos=%d): %w", rec.SequenceID, rec.Position, err)
		}
	}

	state, err := unmarshalState(payload)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("mapper: record (seq=%s pos=%d): %w", rec.SequenceID, rec.Position, err)
	}

	storedVersion := 0
	if raw, ok := state[classVersionKey]; ok {
		if v, ok := raw.(int64); ok {
			storedVersion = int(v)
		}
	}
	delete(state, classVersionKey)

	for storedVersion < info.ClassVersion {
		if info.Upcaster == nil {
			return DomainEvent{}, fmt.Errorf("mapper: topic %q stored at version %d, current %d, no upcaster registered", topic, storedVersion, info.ClassVersion)
		}
		state, err = info.Upcaster.Upcast(state, storedVersion)
		if err != nil {
			return DomainEvent{}, fmt.Errorf("mapper: upcasting topic %q from version %d: %w", topic, storedVersion, err)
		}
		storedVersion++
	}

	decoded, err := m.Transcoder.Decode(state)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("mapper: decoding record (seq=%s pos=%d): %w", rec.SequenceID, rec.Position, err)
	}
	decodedMap := decoded.(map[string]any)

	attrs, _ := decodedMap[attributesKey].(map[string]any)
	meta, _ := decodedMap[metadataKey].(map[string]any)
	if meta == nil {
		meta = map[string]any{}
	}
	meta[pipelineIDMetaKey] = rec.PipelineID

	return DomainEvent{
		SequenceID: rec.SequenceID,
		Position:   rec.Position,
		Topic:      topic,
		Attributes: attrs,
		Metadata:   meta,
	}, nil
}

// pipelineIDMetaKey smuggles PipelineID through Metadata across ToRecord's
// input/ToEvent's output rather than adding it to the transcoded state
// itself — it is routing information the recorder assigns, not part of the
// event's own durable content.
const pipelineIDMetaKey = "__pipeline_id__"

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
